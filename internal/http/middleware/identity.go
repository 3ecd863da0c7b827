package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"filevault/internal/model"
)

// Trusted gateway headers used when no JWT secret is configured.
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserRole     = "X-User-Role"
	HeaderBranchID     = "X-Branch-ID"
	HeaderDepartmentID = "X-Department-ID"

	identityLocalKey = "identity"
)

// ErrNoIdentity is returned when a request carries no usable caller identity.
var ErrNoIdentity = errors.New("missing caller identity")

// Claims is the JWT payload carrying a caller identity.
type Claims struct {
	jwt.RegisteredClaims
	Role         string `json:"role"`
	BranchID     string `json:"branch_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
}

// Identity resolves the caller of every request. With a secret it accepts only
// HS256 bearer tokens; without one it trusts the gateway headers.
// Requests without an identity are passed to onMissing.
func Identity(secret string, onMissing fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			who model.Identity
			err error
		)
		if secret != "" {
			who, err = fromBearer(c.Get(fiber.HeaderAuthorization), []byte(secret))
		} else {
			who, err = fromHeaders(c)
		}
		if err != nil {
			c.Locals(identityLocalKey, err)
			return onMissing(c)
		}
		c.Locals(identityLocalKey, who)
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by Identity.
func IdentityFrom(c *fiber.Ctx) (model.Identity, bool) {
	who, ok := c.Locals(identityLocalKey).(model.Identity)
	return who, ok
}

// IdentityError returns why Identity rejected the request, if it did.
func IdentityError(c *fiber.Ctx) error {
	err, _ := c.Locals(identityLocalKey).(error)
	return err
}

func fromHeaders(c *fiber.Ctx) (model.Identity, error) {
	who := model.Identity{
		UserID:       strings.TrimSpace(c.Get(HeaderUserID)),
		Role:         model.Role(strings.TrimSpace(c.Get(HeaderUserRole))),
		BranchID:     strings.TrimSpace(c.Get(HeaderBranchID)),
		DepartmentID: strings.TrimSpace(c.Get(HeaderDepartmentID)),
	}
	if who.UserID == "" {
		return model.Identity{}, ErrNoIdentity
	}
	if who.Role == "" {
		who.Role = model.RoleUser
	}
	return who, nil
}

func fromBearer(header string, secret []byte) (model.Identity, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return model.Identity{}, ErrNoIdentity
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: token has no subject", ErrNoIdentity)
	}

	who := model.Identity{
		UserID:       claims.Subject,
		Role:         model.Role(claims.Role),
		BranchID:     claims.BranchID,
		DepartmentID: claims.DepartmentID,
	}
	if who.Role == "" {
		who.Role = model.RoleUser
	}
	return who, nil
}
