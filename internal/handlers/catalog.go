package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

// CatalogHandler manages categories.
type CatalogHandler struct {
	db       *gorm.DB
	validate *validation.Validator
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(db *gorm.DB, validate *validation.Validator) *CatalogHandler {
	return &CatalogHandler{db: db, validate: validate}
}

// ListCategories returns every category ordered by name.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	var categories []models.Category
	if err := h.db.WithContext(c.UserContext()).Order("name asc").Find(&categories).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": categories})
}

// GetCategory returns a category by slug with its active products.
func (h *CatalogHandler) GetCategory(c *fiber.Ctx) error {
	var category models.Category
	err := h.db.WithContext(c.UserContext()).
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("created_at desc")
		}).
		First(&category, "slug = ?", c.Params("slug")).Error
	if err != nil {
		return notFound(err, "Category not found")
	}

	return c.JSON(fiber.Map{"success": true, "data": category})
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Slug        string `json:"slug" validate:"max=128"`
	Description string `json:"description" validate:"max=2000"`
	Image       string `json:"image" validate:"max=500"`
}

func (h *CatalogHandler) bind(c *fiber.Ctx, id uuid.UUID) (categoryRequest, error) {
	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return req, err
	}
	req.Name = utils.SanitizeInput(req.Name)
	req.Description = utils.SanitizeInput(req.Description)
	req.Image = utils.SanitizeInput(req.Image)
	if err := h.validate.Struct(req); err != nil {
		return req, err
	}

	slug, err := uniqueSlug(h.db.WithContext(c.UserContext()), &models.Category{}, req.Slug, req.Name, id)
	req.Slug = slug
	return req, err
}

// uniqueSlug derives a slug from explicit or fallback and checks it is free for
// rows other than id.
func uniqueSlug(db *gorm.DB, model any, explicit, fallback string, id uuid.UUID) (string, error) {
	slug := utils.Slugify(explicit)
	if slug == "" {
		slug = utils.Slugify(fallback)
	}
	if slug == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "Slug could not be derived from name")
	}

	query := db.Model(model).Where("slug = ?", slug)
	if id != uuid.Nil {
		query = query.Where("id <> ?", id)
	}
	var taken int64
	if err := query.Count(&taken).Error; err != nil {
		return "", err
	}
	if taken > 0 {
		return "", fiber.NewError(fiber.StatusBadRequest, "Slug is already in use")
	}
	return slug, nil
}

// CreateCategory persists a new category.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	req, err := h.bind(c, uuid.Nil)
	if err != nil {
		return err
	}

	category := models.Category{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.Image,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&category).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": category})
}

// UpdateCategory updates an existing category.
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var category models.Category
	if err := h.db.WithContext(c.UserContext()).First(&category, "id = ?", id).Error; err != nil {
		return notFound(err, "Category not found")
	}

	req, err := h.bind(c, category.ID)
	if err != nil {
		return err
	}

	category.Name = req.Name
	category.Slug = req.Slug
	category.Description = req.Description
	category.Image = req.Image
	if err := h.db.WithContext(c.UserContext()).Save(&category).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": category})
}

// DeleteCategory removes a category that no product references.
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var products int64
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Count(&products).Error; err != nil {
			return err
		}
		if products > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Category still has products")
		}

		res := tx.Delete(&models.Category{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Category not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "Category deleted"})
}
