package handler

import (
	"github.com/gofiber/fiber/v2"

	"filevault/internal/model"
	"filevault/internal/service"
)

type grantRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Level      string `json:"level"`
}

type accessResponse struct {
	FolderID string            `json:"folder_id"`
	Level    model.AccessLevel `json:"level"`
}

// GrantPermission godoc
// @Summary Grant or replace a permission on a folder
// @Tags permissions
// @Accept json
// @Produce json
// @Param id path string true "folder id"
// @Param body body grantRequest true "grant"
// @Success 200 {object} model.Permission
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /api/v1/folders/{id}/permissions [post]
func GrantPermission(svc service.PermissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		var req grantRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}

		perm, err := svc.Grant(c.UserContext(), who, id, service.GrantInput{
			TargetType: req.TargetType,
			TargetID:   req.TargetID,
			Level:      req.Level,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(perm)
	}
}

// RevokePermission godoc
// @Summary Revoke a permission
// @Tags permissions
// @Param id path string true "folder id"
// @Param targetType path string true "user, branch or department"
// @Param targetId path string true "target id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /api/v1/folders/{id}/permissions/{targetType}/{targetId} [delete]
func RevokePermission(svc service.PermissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		tt := model.TargetType(c.Params("targetType"))
		if err := svc.Revoke(c.UserContext(), who, id, tt, c.Params("targetId")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ListPermissions godoc
// @Summary List the grants on a folder
// @Tags permissions
// @Produce json
// @Param id path string true "folder id"
// @Success 200 {array} model.Permission
// @Router /api/v1/folders/{id}/permissions [get]
func ListPermissions(svc service.PermissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		perms, err := svc.List(c.UserContext(), who, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(perms)
	}
}

// ResolveAccess godoc
// @Summary Effective access level of the caller on a folder
// @Tags permissions
// @Produce json
// @Param id path string true "folder id"
// @Success 200 {object} accessResponse
// @Router /api/v1/folders/{id}/access [get]
func ResolveAccess(svc service.PermissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		level, err := svc.Resolve(c.UserContext(), who, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(accessResponse{FolderID: id, Level: level})
	}
}
