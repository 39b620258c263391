package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/ratelimit"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

const firstAdminMessage = "Account created. As the first user you have been granted administrator access."

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	log      *slog.Logger
	validate *validation.Validator
	limiter  *ratelimit.RegistrationLimiter
	mailer   services.Mailer
	metrics  *metrics.Metrics
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(
	db *gorm.DB,
	cfg *config.Config,
	log *slog.Logger,
	validate *validation.Validator,
	limiter *ratelimit.RegistrationLimiter,
	mailer services.Mailer,
	m *metrics.Metrics,
) *AuthHandler {
	return &AuthHandler{
		db:       db,
		cfg:      cfg,
		log:      log,
		validate: validate,
		limiter:  limiter,
		mailer:   mailer,
		metrics:  m,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account. The first account ever created becomes ADMIN.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	name := utils.SanitizeInput(req.Name)
	email := utils.SanitizeInput(req.Email)
	if name == "" || email == "" || req.Password == "" {
		h.reject("VALIDATION")
		return fiber.NewError(fiber.StatusBadRequest, "All fields are required")
	}
	email = models.NormalizeEmail(email)

	if err := h.validate.Email(email); err != nil {
		h.reject("VALIDATION")
		return err
	}
	if err := h.validate.Password(req.Password); err != nil {
		h.reject("VALIDATION")
		return err
	}

	ctx := c.UserContext()

	ipResult, err := h.limiter.CheckIP(ctx, c.IP())
	if err != nil {
		return err
	}
	if !ipResult.Allowed {
		return h.tooManyAttempts(c, ratelimit.ReasonIPBlocked, ipResult,
			"Too many registration attempts from this network. Please try again later.")
	}

	emailResult, err := h.limiter.CheckEmail(ctx, email)
	if err != nil {
		return err
	}
	if !emailResult.Allowed {
		return h.tooManyAttempts(c, ratelimit.ReasonEmailBlocked, emailResult,
			"A registration for this email was attempted recently. Please try again later.")
	}

	var existing int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		h.reject("EMAIL_TAKEN")
		return fiber.NewError(fiber.StatusBadRequest, "User with this email already exists")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := models.User{Name: name, Email: email, PasswordHash: passwordHash, Role: models.RoleUser}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockFirstUser(tx); err != nil {
			return err
		}
		var total int64
		if err := tx.Model(&models.User{}).Count(&total).Error; err != nil {
			return err
		}
		if total == 0 {
			user.Role = models.RoleAdmin
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return err
	}

	h.metrics.Registrations.WithLabelValues(string(user.Role)).Inc()
	middleware.RequestLogger(c, h.log).Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)),
	)

	go h.sendWelcome(user)

	resp := fiber.Map{
		"success": true,
		"data":    user,
		"remainingAttempts": fiber.Map{
			"ip":    ipResult.Remaining,
			"email": emailResult.Remaining,
		},
	}
	if user.Role == models.RoleAdmin {
		resp["message"] = firstAdminMessage
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// firstUserLockKey names the advisory lock serializing the first-user check.
const firstUserLockKey = 72_610_001

// firstUserLockSQL returns the statement that serializes concurrent
// registrations for dialect, or "" when the database already serializes writers.
func firstUserLockSQL(dialect string) string {
	if dialect == "postgres" {
		return "SELECT pg_advisory_xact_lock(?)"
	}
	return ""
}

// lockFirstUser holds a transaction-scoped lock so two sign-ups on an empty
// store cannot both count zero users and both become admin.
func lockFirstUser(tx *gorm.DB) error {
	stmt := firstUserLockSQL(tx.Dialector.Name())
	if stmt == "" {
		return nil
	}
	return tx.Exec(stmt, firstUserLockKey).Error
}

func (h *AuthHandler) reject(reason string) {
	h.metrics.RegistrationRejections.WithLabelValues(reason).Inc()
}

func (h *AuthHandler) tooManyAttempts(c *fiber.Ctx, reason string, res ratelimit.Result, message string) error {
	h.reject(reason)

	retryAfter := res.RetryAfter(time.Now())
	c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(retryAfter.Seconds())))
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"success":   false,
		"error":     message,
		"reason":    reason,
		"resetTime": res.ResetAt.UTC(),
	})
}

func (h *AuthHandler) sendWelcome(user models.User) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	email := services.WelcomeEmail(user.Name, user.Email, user.Role == models.RoleAdmin)
	if err := h.mailer.SendMail(ctx, email); err != nil {
		h.log.Warn("failed to send welcome email", slog.String("user_id", user.ID.String()), logger.Err(err))
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and issues a session token, also set as a cookie.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	email := models.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Email and password are required")
	}

	var user models.User
	if err := h.db.WithContext(c.UserContext()).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.metrics.Logins.WithLabelValues("failure").Inc()
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		h.metrics.Logins.WithLabelValues("failure").Inc()
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
	}

	ttl := h.cfg.TokenTTL()
	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.Role), ttl)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	h.metrics.Logins.WithLabelValues("success").Inc()

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"token": token,
			"user":  user,
		},
	})
}

// Logout clears the session cookie. Bearer tokens simply expire.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"success": true})
}

// Session returns the user behind the current session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.db.WithContext(c.UserContext()).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"user": fiber.Map{
				"id":    user.ID,
				"role":  user.Role,
				"email": user.Email,
				"name":  user.Name,
			},
		},
	})
}
