package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"filevault/internal/model"
	"filevault/internal/service"
)

// SoftDelete godoc
// @Summary Move a folder subtree or a file to the trash
// @Tags trash
// @Param id path string true "resource id"
// @Success 204
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/v1/folders/{id} [delete]
// @Router /api/v1/files/{id} [delete]
func SoftDelete(svc service.LifecycleService, rt model.ResourceType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}

		var err error
		if rt == model.ResourceFolder {
			err = svc.SoftDeleteFolder(c.UserContext(), who, id)
		} else {
			err = svc.SoftDeleteFile(c.UserContext(), who, id)
		}
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Restore godoc
// @Summary Restore a trashed folder subtree or file
// @Tags trash
// @Produce json
// @Param id path string true "resource id"
// @Success 200 {object} model.Folder
// @Failure 412 {object} errorPayload
// @Router /api/v1/folders/{id}/restore [post]
// @Router /api/v1/files/{id}/restore [post]
func Restore(svc service.LifecycleService, rt model.ResourceType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}

		if rt == model.ResourceFolder {
			folder, err := svc.RestoreFolder(c.UserContext(), who, id)
			if err != nil {
				return writeServiceError(c, err)
			}
			return c.JSON(folder)
		}
		file, err := svc.RestoreFile(c.UserContext(), who, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(file)
	}
}

// PermanentlyDelete godoc
// @Summary Purge a trashed item and everything under it
// @Tags trash
// @Param id path string true "resource id"
// @Param force query bool false "purge even while usable share links exist"
// @Success 204
// @Failure 412 {object} errorPayload
// @Router /api/v1/folders/{id}/permanent [delete]
// @Router /api/v1/files/{id}/permanent [delete]
func PermanentlyDelete(svc service.LifecycleService, rt model.ResourceType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		force, err := strconv.ParseBool(c.Query("force", "false"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FORCE", "invalid force")
		}

		if err := svc.PermanentlyDelete(c.UserContext(), who, rt, id, force); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ListTrash godoc
// @Summary List trashed items, newest first
// @Tags trash
// @Produce json
// @Param page query int false "page"
// @Param per_page query int false "items per page"
// @Success 200 {object} service.Page[model.TrashItem]
// @Router /api/v1/trash [get]
func ListTrash(svc service.LifecycleService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		page, perPage, reqErr := pageParams(c)
		if reqErr != nil {
			return reqErr.write(c)
		}
		res, err := svc.ListTrash(c.UserContext(), who, page, perPage)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}
