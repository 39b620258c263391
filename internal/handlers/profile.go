package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

// ProfileHandler manages user profile endpoints.
type ProfileHandler struct {
	db       *gorm.DB
	validate *validation.Validator
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB, validate *validation.Validator) *ProfileHandler {
	return &ProfileHandler{db: db, validate: validate}
}

func (h *ProfileHandler) loadUser(c *fiber.Ctx) (models.User, error) {
	var user models.User
	userID, err := currentUserID(c)
	if err != nil {
		return user, err
	}
	err = h.db.WithContext(c.UserContext()).First(&user, "id = ?", userID).Error
	return user, notFound(err, "User not found")
}

// GetProfile returns the authenticated user's profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	var orderCount int64
	if err := h.db.WithContext(c.UserContext()).Model(&models.Order{}).
		Where("user_id = ?", user.ID).Count(&orderCount).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":         user.ID,
			"name":       user.Name,
			"email":      user.Email,
			"role":       user.Role,
			"orderCount": orderCount,
			"createdAt":  user.CreatedAt,
			"updatedAt":  user.UpdatedAt,
		},
	})
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// UpdateProfile updates the display name.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Name = utils.SanitizeInput(req.Name)
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	if err := h.db.WithContext(c.UserContext()).Model(&user).Update("name", req.Name).Error; err != nil {
		return err
	}
	user.Name = req.Name

	return c.JSON(fiber.Map{"success": true, "data": user})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword replaces the password after checking the current one.
func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Current and new password are required")
	}

	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return fiber.NewError(fiber.StatusBadRequest, "Current password is incorrect")
	}
	if req.CurrentPassword == req.NewPassword {
		return fiber.NewError(fiber.StatusBadRequest, "New password must be different from the current password")
	}
	if err := h.validate.Password(req.NewPassword); err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := h.db.WithContext(c.UserContext()).Model(&user).Update("password_hash", hash).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "Password updated successfully"})
}
