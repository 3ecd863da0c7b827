package handler

import (
	"github.com/gofiber/fiber/v2"

	"filevault/internal/service"
)

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type moveFolderRequest struct {
	// ParentID is the new parent; null or empty moves the folder to the root.
	ParentID *string `json:"parent_id"`
}

// CreateFolder godoc
// @Summary Create a folder
// @Tags folders
// @Accept json
// @Produce json
// @Param body body createFolderRequest true "folder"
// @Success 201 {object} model.Folder
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /api/v1/folders [post]
func CreateFolder(svc service.FolderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		var req createFolderRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		if req.ParentID != nil && *req.ParentID == "" {
			req.ParentID = nil
		}

		folder, err := svc.Create(c.UserContext(), who, req.Name, req.ParentID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(folder)
	}
}

// ListRootFolders godoc
// @Summary List the root folders the caller can view
// @Tags folders
// @Produce json
// @Success 200 {array} model.Folder
// @Router /api/v1/folders [get]
func ListRootFolders(svc service.FolderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		folders, err := svc.ListRoots(c.UserContext(), who)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(folders)
	}
}

// GetFolder godoc
// @Summary Get a folder
// @Tags folders
// @Produce json
// @Param id path string true "folder id"
// @Success 200 {object} model.Folder
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/v1/folders/{id} [get]
func GetFolder(svc service.FolderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		folder, err := svc.Get(c.UserContext(), who, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(folder)
	}
}

// ListFolderContents godoc
// @Summary List the live subfolders and files of a folder
// @Tags folders
// @Produce json
// @Param id path string true "folder id"
// @Success 200 {object} service.FolderContents
// @Router /api/v1/folders/{id}/contents [get]
func ListFolderContents(svc service.FolderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		contents, err := svc.ListContents(c.UserContext(), who, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(contents)
	}
}

// RenameFolder godoc
// @Summary Rename a folder
// @Tags folders
// @Accept json
// @Produce json
// @Param id path string true "folder id"
// @Param body body nameRequest true "new name"
// @Success 200 {object} model.Folder
// @Failure 409 {object} errorPayload
// @Router /api/v1/folders/{id} [patch]
func RenameFolder(svc service.FolderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		var req nameRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		folder, err := svc.Rename(c.UserContext(), who, id, req.Name)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(folder)
	}
}

// MoveFolder godoc
// @Summary Move a folder under a new parent or to the root
// @Tags folders
// @Accept json
// @Produce json
// @Param id path string true "folder id"
// @Param body body moveFolderRequest true "destination"
// @Success 200 {object} model.Folder
// @Failure 409 {object} errorPayload
// @Router /api/v1/folders/{id}/move [post]
func MoveFolder(svc service.FolderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		var req moveFolderRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		var parentID string
		if req.ParentID != nil {
			parentID = *req.ParentID
		}
		folder, err := svc.Move(c.UserContext(), who, id, parentID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(folder)
	}
}
