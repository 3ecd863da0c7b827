package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/model"
)

func identityApp(secret string) *fiber.App {
	app := fiber.New()
	app.Use(Identity(secret, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusUnauthorized).SendString(IdentityError(c).Error())
	}))
	app.Get("/me", func(c *fiber.Ctx) error {
		who, _ := IdentityFrom(c)
		return c.JSON(who)
	})
	return app
}

func signed(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestIdentity_Headers(t *testing.T) {
	app := identityApp("")

	t.Run("full identity", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set(HeaderUserID, "alice")
		req.Header.Set(HeaderUserRole, "branch_admin")
		req.Header.Set(HeaderBranchID, "jakarta")
		req.Header.Set(HeaderDepartmentID, "finance")
		resp, _ := app.Test(req)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var who model.Identity
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&who))
		assert.Equal(t, model.Identity{UserID: "alice", Role: model.RoleBranchAdmin, BranchID: "jakarta", DepartmentID: "finance"}, who)
	})

	t.Run("role defaults to user", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set(HeaderUserID, "bob")
		resp, _ := app.Test(req)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var who model.Identity
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&who))
		assert.Equal(t, model.RoleUser, who.Role)
	})

	t.Run("missing user", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestIdentity_JWT(t *testing.T) {
	secret := "test-secret"
	app := identityApp(secret)

	valid := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "carol",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:         "super_admin",
		DepartmentID: "legal",
	}

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+signed(t, jwt.SigningMethodHS256, []byte(secret), valid))
		resp, _ := app.Test(req)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var who model.Identity
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&who))
		assert.Equal(t, "carol", who.UserID)
		assert.Equal(t, model.RoleSuperAdmin, who.Role)
		assert.Equal(t, "legal", who.DepartmentID)
	})

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noSubject := valid
	noSubject.Subject = ""

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"wrong secret", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), valid)},
		{"wrong algorithm", "Bearer " + signed(t, jwt.SigningMethodHS512, []byte(secret), valid)},
		{"expired", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), expired)},
		{"no subject", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), noSubject)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req.Header.Set(HeaderUserID, "spoofed")
			resp, _ := app.Test(req)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
