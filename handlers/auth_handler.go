package handlers

import (
	"crypto/subtle"
	"strings"

	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	adminRole     = "admin"
	localsSubject = "admin_subject"
)

// AuthHandler issues admin JWTs and guards the admin routes with them
type AuthHandler struct {
	AdminToken string
	Issuer     shared.TokenIssuer
}

func NewAuthHandler(adminToken string, issuer shared.TokenIssuer) *AuthHandler {
	return &AuthHandler{AdminToken: adminToken, Issuer: issuer}
}

func unauthorized(code, message string) error {
	return shared.NewServiceError(shared.ErrorCategoryAuthentication, code, message, "HTTP_API", "Authenticate", false, nil)
}

// IssueToken exchanges the bootstrap ADMIN_TOKEN for a signed JWT
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := bindAndValidate(c, &req, "IssueToken"); err != nil {
		return respondError(c, err)
	}

	if h.AdminToken == "" || subtle.ConstantTimeCompare([]byte(req.AdminToken), []byte(h.AdminToken)) != 1 {
		logrus.WithField("ip", c.IP()).Warn("Rejected admin token exchange")
		return respondError(c, unauthorized("INVALID_ADMIN_TOKEN", "Invalid admin token"))
	}

	token, expiresAt, err := h.Issuer.Sign(adminRole, adminRole)
	if err != nil {
		return respondError(c, shared.WrapError(err, shared.ErrorCategoryConfiguration, "TOKEN_SIGNING_FAILED", "HTTP_API", "IssueToken", false))
	}
	return respondOK(c, fiber.Map{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expiresAt,
	})
}

// RequireAdmin rejects requests without a valid admin bearer token
func (h *AuthHandler) RequireAdmin(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return respondError(c, unauthorized("MISSING_TOKEN", "Missing bearer token"))
	}

	claims, err := h.Issuer.Verify(raw)
	if err != nil {
		logrus.WithError(err).Debug("Admin token verification failed")
		return respondError(c, unauthorized("INVALID_TOKEN", "Invalid or expired token"))
	}
	if claims.Role != adminRole {
		return respondError(c, unauthorized("FORBIDDEN_ROLE", "Token does not carry the admin role"))
	}

	c.Locals(localsSubject, claims.Subject)
	return c.Next()
}
