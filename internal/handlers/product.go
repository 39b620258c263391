package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

var productSorts = map[string]string{
	"newest":     "created_at desc",
	"price_asc":  "price asc",
	"price_desc": "price desc",
}

// ProductHandler manages product CRUD.
type ProductHandler struct {
	db       *gorm.DB
	validate *validation.Validator
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB, validate *validation.Validator) *ProductHandler {
	return &ProductHandler{db: db, validate: validate}
}

// RegisterRoutes mounts the public read routes and the admin CRUD routes.
func (h *ProductHandler) RegisterRoutes(public, admin fiber.Router) {
	public.Get("/", h.ListProducts)
	public.Get("/:id", h.GetProduct)

	admin.Get("/", h.ListAllProducts)
	admin.Get("/:id", h.GetAnyProduct)
	admin.Post("/", h.CreateProduct)
	admin.Put("/:id", h.UpdateProduct)
	admin.Delete("/:id", h.DeleteProduct)
}

// ListProducts returns active products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	return h.list(c, false)
}

// ListAllProducts is the admin listing; it includes inactive products.
func (h *ProductHandler) ListAllProducts(c *fiber.Ctx) error {
	return h.list(c, true)
}

func (h *ProductHandler) list(c *fiber.Ctx, includeInactive bool) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Product{})

	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	if slug := c.Query("category"); slug != "" {
		query = query.Where("category_id IN (?)",
			h.db.Model(&models.Category{}).Select("id").Where("slug = ?", slug))
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := utils.ContainsPattern(search)
		query = query.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	if minPrice := c.Query("minPrice"); minPrice != "" {
		if val, err := strconv.ParseFloat(minPrice, 64); err == nil {
			query = query.Where("price >= ?", val)
		}
	}

	if maxPrice := c.Query("maxPrice"); maxPrice != "" {
		if val, err := strconv.ParseFloat(maxPrice, 64); err == nil {
			query = query.Where("price <= ?", val)
		}
	}

	order, ok := productSorts[c.Query("sort")]
	if !ok {
		order = productSorts["newest"]
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Category").
		Order(order).
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	})
}

// GetProduct loads an active product by id or slug.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	return h.get(c, false)
}

// GetAnyProduct loads any product by id or slug.
func (h *ProductHandler) GetAnyProduct(c *fiber.Ctx) error {
	return h.get(c, true)
}

func (h *ProductHandler) get(c *fiber.Ctx, includeInactive bool) error {
	query := h.db.WithContext(c.UserContext()).Preload("Category")

	key := c.Params("id")
	if id, err := uuid.Parse(key); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", key)
	}
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var product models.Product
	if err := query.First(&product).Error; err != nil {
		return notFound(err, "Product not found")
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

type productRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Slug        string     `json:"slug" validate:"max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Price       float64    `json:"price" validate:"gt=0"`
	Stock       int        `json:"stock" validate:"gte=0"`
	CategoryID  *uuid.UUID `json:"categoryId"`
	Images      []string   `json:"images" validate:"max=20,dive,max=500"`
	IsActive    *bool      `json:"isActive"`
}

func (h *ProductHandler) bind(c *fiber.Ctx, id uuid.UUID) (productRequest, error) {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return req, err
	}
	req.Name = utils.SanitizeInput(req.Name)
	req.Description = utils.SanitizeInput(req.Description)
	images := req.Images[:0]
	for _, img := range req.Images {
		if img = utils.SanitizeInput(img); img != "" {
			images = append(images, img)
		}
	}
	req.Images = images

	if err := h.validate.Struct(req); err != nil {
		return req, err
	}

	db := h.db.WithContext(c.UserContext())
	if req.CategoryID != nil {
		var count int64
		if err := db.Model(&models.Category{}).Where("id = ?", *req.CategoryID).Count(&count).Error; err != nil {
			return req, err
		}
		if count == 0 {
			return req, fiber.NewError(fiber.StatusBadRequest, "Category not found")
		}
	}

	slug, err := uniqueSlug(db, &models.Product{}, req.Slug, req.Name, id)
	req.Slug = slug
	return req, err
}

func (r productRequest) apply(p *models.Product) {
	p.Name = r.Name
	p.Slug = r.Slug
	p.Description = r.Description
	p.Price = roundMoney(r.Price)
	p.Stock = r.Stock
	p.CategoryID = r.CategoryID
	p.Images = r.Images
	if p.Images == nil {
		p.Images = []string{}
	}
}

// CreateProduct persists a new product. Products are active unless isActive is false.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	req, err := h.bind(c, uuid.Nil)
	if err != nil {
		return err
	}

	var product models.Product
	req.apply(&product)
	product.IsActive = boolOr(req.IsActive, true)

	if err := h.db.WithContext(c.UserContext()).Create(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct replaces a product's fields.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.db.WithContext(c.UserContext()).First(&product, "id = ?", id).Error; err != nil {
		return notFound(err, "Product not found")
	}

	req, err := h.bind(c, product.ID)
	if err != nil {
		return err
	}

	req.apply(&product)
	product.IsActive = boolOr(req.IsActive, product.IsActive)
	product.Category = nil

	if err := h.db.WithContext(c.UserContext()).Save(&product).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product and any cart lines holding it. Order
// history keeps its own name and price snapshot.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "Product deleted"})
}
