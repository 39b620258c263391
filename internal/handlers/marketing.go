package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

const bannerNotFound = "Banner not found"

// MarketingHandler manages promotional banners.
type MarketingHandler struct {
	db       *gorm.DB
	validate *validation.Validator
}

// NewMarketingHandler constructs MarketingHandler.
func NewMarketingHandler(db *gorm.DB, validate *validation.Validator) *MarketingHandler {
	return &MarketingHandler{db: db, validate: validate}
}

// ListBanners returns active banners in display order.
func (h *MarketingHandler) ListBanners(c *fiber.Ctx) error {
	var banners []models.Banner
	if err := h.db.WithContext(c.UserContext()).
		Where("is_active = ?", true).
		Order("sort_order asc").Order("created_at asc").
		Find(&banners).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": banners})
}

// ListAllBanners returns every banner for the back office.
func (h *MarketingHandler) ListAllBanners(c *fiber.Ctx) error {
	var banners []models.Banner
	if err := h.db.WithContext(c.UserContext()).
		Order("sort_order asc").Order("created_at asc").
		Find(&banners).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": banners})
}

// GetBanner returns one banner.
func (h *MarketingHandler) GetBanner(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var banner models.Banner
	if err := h.db.WithContext(c.UserContext()).First(&banner, "id = ?", id).Error; err != nil {
		return notFound(err, bannerNotFound)
	}
	return c.JSON(fiber.Map{"success": true, "data": banner})
}

type bannerRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Subtitle  string `json:"subtitle" validate:"max=500"`
	Image     string `json:"image" validate:"max=500"`
	Link      string `json:"link" validate:"max=500"`
	SortOrder int    `json:"sortOrder"`
	IsActive  *bool  `json:"isActive"`
}

func (h *MarketingHandler) bind(c *fiber.Ctx) (bannerRequest, error) {
	var req bannerRequest
	if err := parseBody(c, &req); err != nil {
		return req, err
	}
	req.Title = utils.SanitizeInput(req.Title)
	req.Subtitle = utils.SanitizeInput(req.Subtitle)
	req.Image = utils.SanitizeInput(req.Image)
	req.Link = utils.SanitizeInput(req.Link)
	return req, h.validate.Struct(req)
}

// CreateBanner adds a banner. Banners are active unless isActive is false.
func (h *MarketingHandler) CreateBanner(c *fiber.Ctx) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}

	banner := models.Banner{
		Title:     req.Title,
		Subtitle:  req.Subtitle,
		Image:     req.Image,
		Link:      req.Link,
		SortOrder: req.SortOrder,
		IsActive:  boolOr(req.IsActive, true),
	}
	if err := h.db.WithContext(c.UserContext()).Create(&banner).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": banner})
}

// UpdateBanner replaces a banner's fields.
func (h *MarketingHandler) UpdateBanner(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var banner models.Banner
	if err := h.db.WithContext(c.UserContext()).First(&banner, "id = ?", id).Error; err != nil {
		return notFound(err, bannerNotFound)
	}

	req, err := h.bind(c)
	if err != nil {
		return err
	}

	banner.Title = req.Title
	banner.Subtitle = req.Subtitle
	banner.Image = req.Image
	banner.Link = req.Link
	banner.SortOrder = req.SortOrder
	banner.IsActive = boolOr(req.IsActive, banner.IsActive)
	if err := h.db.WithContext(c.UserContext()).Save(&banner).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": banner})
}

// DeleteBanner removes a banner.
func (h *MarketingHandler) DeleteBanner(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	res := h.db.WithContext(c.UserContext()).Delete(&models.Banner{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, bannerNotFound)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Banner deleted"})
}
