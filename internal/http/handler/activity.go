package handler

import (
	"github.com/gofiber/fiber/v2"

	"filevault/internal/model"
	"filevault/internal/service"
)

// ListActivity godoc
// @Summary List audit entries, newest first
// @Description Administrators see every entry; other callers only their own.
// @Tags activity
// @Produce json
// @Param user_id query string false "actor"
// @Param action query string false "action, e.g. folder.create"
// @Param resource_type query string false "file or folder"
// @Param page query int false "page"
// @Param per_page query int false "items per page"
// @Success 200 {object} service.Page[model.ActivityLog]
// @Router /api/v1/activity [get]
func ListActivity(rec service.ActivityRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		page, perPage, reqErr := pageParams(c)
		if reqErr != nil {
			return reqErr.write(c)
		}

		res, err := rec.List(c.UserContext(), who, service.ActivityQuery{
			UserID:       c.Query("user_id"),
			Action:       c.Query("action"),
			ResourceType: model.ResourceType(c.Query("resource_type")),
			Page:         page,
			PerPage:      perPage,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}
