package handler

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"filevault/internal/http/middleware"
	"filevault/internal/model"
	"filevault/internal/service"
)

// caller returns the identity set by middleware.Identity.
func caller(c *fiber.Ctx) (model.Identity, bool) {
	return middleware.IdentityFrom(c)
}

func unauthenticated(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
}

// pathID reads a uuid route parameter.
func pathID(c *fiber.Ctx, name string) (string, bool) {
	id := c.Params(name)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func invalidID(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
}

func invalidBody(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
}

// pageParams reads page and per_page. A page past service.MaxPage is rejected; other
// range clamping is left to the services.
func pageParams(c *fiber.Ctx) (int, int, *requestError) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		return 0, 0, &requestError{code: "INVALID_PAGE", message: "invalid page"}
	}
	if page > service.MaxPage {
		return 0, 0, &requestError{code: "INVALID_PAGE", message: fmt.Sprintf("page must not exceed %d", service.MaxPage)}
	}
	perPage, err := strconv.Atoi(c.Query("per_page", "0"))
	if err != nil {
		return 0, 0, &requestError{code: "INVALID_PER_PAGE", message: "invalid per_page"}
	}
	return page, perPage, nil
}

type nameRequest struct {
	Name string `json:"name"`
}

// requestError is a malformed request detected before any service call.
type requestError struct {
	code    string
	message string
}

func (e *requestError) write(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, e.code, e.message)
}
