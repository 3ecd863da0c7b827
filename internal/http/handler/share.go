package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"filevault/internal/model"
	"filevault/internal/service"
)

// HeaderSharePassword carries the password of a protected share link.
const HeaderSharePassword = "X-Share-Password"

type createShareRequest struct {
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id"`
	Password     *string    `json:"password"`
	ExpiresAt    *time.Time `json:"expires_at"`
	MaxDownloads *int       `json:"max_downloads"`
}

// sharePassword reads the password from the header, falling back to the query string.
func sharePassword(c *fiber.Ctx) *string {
	if v := c.Get(HeaderSharePassword); v != "" {
		return &v
	}
	if v := c.Query("password"); v != "" {
		return &v
	}
	return nil
}

// CreateShareLink godoc
// @Summary Create a share link on a file or folder
// @Tags shares
// @Accept json
// @Produce json
// @Param body body createShareRequest true "link"
// @Success 201 {object} model.ShareLink
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /api/v1/shares [post]
func CreateShareLink(svc service.ShareService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		var req createShareRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}

		link, err := svc.Create(c.UserContext(), who, service.ShareInput{
			ResourceType: model.ResourceType(req.ResourceType),
			ResourceID:   req.ResourceID,
			Password:     req.Password,
			ExpiresAt:    req.ExpiresAt,
			MaxDownloads: req.MaxDownloads,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(link)
	}
}

// ListShareLinks godoc
// @Summary List the share links of a resource
// @Tags shares
// @Produce json
// @Param resource_type query string true "file or folder"
// @Param resource_id query string true "resource id"
// @Success 200 {array} model.ShareLink
// @Router /api/v1/shares [get]
func ListShareLinks(svc service.ShareService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		links, err := svc.List(c.UserContext(), who, model.ResourceType(c.Query("resource_type")), c.Query("resource_id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(links)
	}
}

// DeactivateShareLink godoc
// @Summary Deactivate a share link
// @Tags shares
// @Param id path string true "link id"
// @Success 204
// @Failure 403 {object} errorPayload
// @Router /api/v1/shares/{id} [delete]
func DeactivateShareLink(svc service.ShareService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		if err := svc.Deactivate(c.UserContext(), who, id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ResolveShareLink godoc
// @Summary Resolve a share link anonymously
// @Tags public
// @Produce json
// @Param token path string true "link token"
// @Param X-Share-Password header string false "link password"
// @Success 200 {object} service.SharedResource
// @Failure 401 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 410 {object} errorPayload
// @Router /s/{token} [get]
func ResolveShareLink(svc service.ShareService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.Resolve(c.UserContext(), c.Params("token"), sharePassword(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// DownloadShared godoc
// @Summary Download the file behind a share link, consuming one download
// @Tags public
// @Produce octet-stream
// @Param token path string true "link token"
// @Param X-Share-Password header string false "link password"
// @Success 200 {file} binary
// @Failure 410 {object} errorPayload
// @Router /s/{token}/download [get]
func DownloadShared(svc service.ShareService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, file, err := svc.DownloadShared(c.UserContext(), c.Params("token"), sharePassword(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return sendContent(c, file, rc)
	}
}
