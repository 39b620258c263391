package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const sessionContextKey = "currentSession"

// SessionCookie is the HTTP-only cookie carrying the session token.
const SessionCookie = "session"

// RequireAuth resolves the session from the bearer header, falling back to
// the session cookie, and stores it in the request context.
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies(SessionCookie)
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}

		session, err := utils.ParseToken(secret, token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}

		c.Locals(sessionContextKey, session)
		return c.Next()
	}
}

// RequireRole rejects sessions whose user does not currently hold role.
// The role is read from the users table, not the token, so a demotion takes
// effect on the next request. It must run after RequireAuth.
func RequireRole(db *gorm.DB, role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := CurrentSession(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}

		var user models.User
		err := db.WithContext(c.UserContext()).Select("role").First(&user, "id = ?", session.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}
		if err != nil {
			return err
		}
		if user.Role != role {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}

		session.Role = string(user.Role)
		c.Locals(sessionContextKey, session)
		return c.Next()
	}
}

// CurrentSession extracts the authenticated session from context.
func CurrentSession(c *fiber.Ctx) (utils.Session, bool) {
	session, ok := c.Locals(sessionContextKey).(utils.Session)
	if !ok || session.UserID == uuid.Nil {
		return utils.Session{}, false
	}
	return session, true
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	session, ok := CurrentSession(c)
	return session.UserID, ok
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
