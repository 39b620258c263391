package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/ratelimit"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

const (
	resetTokenTTL     = 30 * time.Minute
	resetRequestLimit = 3
	resetWindow       = time.Hour

	forgotPasswordMessage = "If an account exists for this email, a reset link has been sent."
)

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	db       *gorm.DB
	log      *slog.Logger
	validate *validation.Validator
	limiter  *ratelimit.Limiter
	mailer   services.Mailer
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB, log *slog.Logger, validate *validation.Validator, store ratelimit.Store, mailer services.Mailer) *PasswordResetHandler {
	return &PasswordResetHandler{
		db:       db,
		log:      log,
		validate: validate,
		limiter:  ratelimit.NewLimiter(store, "reset:email:", resetRequestLimit, resetWindow),
		mailer:   mailer,
	}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword emails a single-use reset token. The response does not
// reveal whether the email has an account.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	email := models.NormalizeEmail(utils.SanitizeInput(req.Email))
	if err := h.validate.Email(email); err != nil {
		return err
	}

	ctx := c.UserContext()
	res, err := h.limiter.Allow(ctx, email)
	if err != nil {
		return err
	}
	if !res.Allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":   false,
			"error":     "Too many reset requests. Please try again later.",
			"resetTime": res.ResetAt.UTC(),
		})
	}

	var user models.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"success": true, "message": forgotPasswordMessage})
		}
		return err
	}

	token, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := time.Now()
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Only the newest token stays usable.
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("user_id = ? AND used_at IS NULL AND expires_at > ?", user.ID, now).
			Update("expires_at", now).Error; err != nil {
			return err
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    user.ID,
			TokenHash: hashResetToken(token),
			ExpiresAt: now.Add(resetTokenTTL),
		}).Error
	})
	if err != nil {
		return err
	}

	mail := &services.Email{
		Subject: "Reset your password",
		Body: fmt.Sprintf("Hi %s,\n\nUse this token to reset your password within %d minutes:\n\nReset token: %s\n\nIf you did not ask for a reset you can ignore this email.\n",
			user.Name, int(resetTokenTTL.Minutes()), token),
		To: []string{user.Email},
	}
	if err := h.mailer.SendMail(ctx, mail); err != nil {
		middleware.RequestLogger(c, h.log).Error("failed to send reset email",
			slog.String("user_id", user.ID.String()), logger.Err(err))
	}

	return c.JSON(fiber.Map{"success": true, "message": forgotPasswordMessage})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword sets a new password using a token from ForgotPassword.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if req.Token == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Token and password are required")
	}
	if err := h.validate.Password(req.Password); err != nil {
		return err
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	invalid := fiber.NewError(fiber.StatusBadRequest, "Invalid or expired reset token")
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var record models.PasswordResetToken
		if err := tx.Where("token_hash = ?", hashResetToken(req.Token)).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalid
			}
			return err
		}

		now := time.Now()
		if record.UsedAt != nil || !record.ExpiresAt.After(now) {
			return invalid
		}

		if err := tx.Model(&models.User{}).Where("id = ?", record.UserID).
			Update("password_hash", passwordHash).Error; err != nil {
			return err
		}
		return tx.Model(&record).Update("used_at", now).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "Password updated successfully"})
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
