package middleware

import (
	"github.com/gofiber/fiber/v2"

	"filevault/internal/service"
)

// ClientIP stores the caller address in the request context so activity
// entries can carry it.
func ClientIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(service.WithClientIP(c.UserContext(), c.IP()))
		return c.Next()
	}
}
