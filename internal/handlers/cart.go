package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

const cartItemNotFound = "Cart item not found"

// CartHandler manages the signed-in user's cart.
type CartHandler struct {
	db *gorm.DB
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(db *gorm.DB) *CartHandler {
	return &CartHandler{db: db}
}

func stockError(p *models.Product) error {
	if p.Stock <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s is out of stock", p.Name))
	}
	return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Only %d of %s left in stock", p.Stock, p.Name))
}

// GetCart returns the cart lines with their products and the subtotal.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var items []models.CartItem
	if err := h.db.WithContext(c.UserContext()).Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		return err
	}

	var subtotal float64
	var count int
	for _, item := range items {
		if item.Product != nil {
			subtotal += item.Product.Price * float64(item.Quantity)
		}
		count += item.Quantity
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"items":     items,
			"itemCount": count,
			"subtotal":  roundMoney(subtotal),
		},
	})
}

type addCartItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// AddItem adds quantity of a product, merging with an existing line.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req addCartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ProductID == uuid.Nil {
		return fiber.NewError(fiber.StatusBadRequest, "Product id is required")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Quantity must be 1 or more")
	}

	var item models.CartItem
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ? AND is_active = ?", req.ProductID, true).Error; err != nil {
			return notFound(err, "Product not found")
		}

		err := tx.Where("user_id = ? AND product_id = ?", userID, product.ID).First(&item).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		quantity := item.Quantity + req.Quantity
		if quantity > product.Stock {
			return stockError(&product)
		}

		item.UserID = userID
		item.ProductID = product.ID
		item.Quantity = quantity
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		item.Product = &product
		return nil
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateItem sets a line's quantity. Zero removes the line.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req updateCartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Quantity < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Quantity must be 0 or more")
	}

	var item models.CartItem
	removed := false
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Product").First(&item, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			return notFound(err, cartItemNotFound)
		}

		if req.Quantity == 0 {
			removed = true
			return tx.Delete(&item).Error
		}

		if item.Product == nil || !item.Product.IsActive {
			return fiber.NewError(fiber.StatusBadRequest, "Product is no longer available")
		}
		if req.Quantity > item.Product.Stock {
			return stockError(item.Product)
		}
		item.Quantity = req.Quantity
		return tx.Model(&item).Update("quantity", req.Quantity).Error
	})
	if err != nil {
		return err
	}

	if removed {
		return c.JSON(fiber.Map{"success": true, "message": "Item removed"})
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

// RemoveItem deletes one cart line.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	res := h.db.WithContext(c.UserContext()).Where("id = ? AND user_id = ?", id, userID).Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, cartItemNotFound)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Item removed"})
}

// ClearCart empties the cart.
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	if err := h.db.WithContext(c.UserContext()).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "Cart cleared"})
}
