package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

const orderNotFound = "Order not found"

// OrderHandler manages checkout and order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	log      *slog.Logger
	validate *validation.Validator
	notifier services.OrderNotifier
	metrics  *metrics.Metrics
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(
	db *gorm.DB,
	cfg *config.Config,
	log *slog.Logger,
	validate *validation.Validator,
	notifier services.OrderNotifier,
	m *metrics.Metrics,
) *OrderHandler {
	return &OrderHandler{db: db, cfg: cfg, log: log, validate: validate, notifier: notifier, metrics: m}
}

type createOrderRequest struct {
	AddressID uuid.UUID `json:"addressId"`
	Notes     string    `json:"notes" validate:"max=500"`
}

// ShippingFor returns the shipping fee for a subtotal.
func (h *OrderHandler) ShippingFor(subtotal float64) float64 {
	if subtotal >= h.cfg.FreeShippingThreshold {
		return 0
	}
	return h.cfg.ShippingFee
}

// CreateOrder turns the user's cart into an order in a single transaction.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req createOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.AddressID == uuid.Nil {
		return fiber.NewError(fiber.StatusBadRequest, "Address id is required")
	}
	req.Notes = utils.SanitizeInput(req.Notes)
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	var order models.Order
	var user models.User
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFound(err, "User not found")
		}

		address, err := findAddress(tx, userID, req.AddressID)
		if err != nil {
			return err
		}

		var cart []models.CartItem
		if err := tx.Preload("Product").Where("user_id = ?", userID).
			Order("created_at asc").Find(&cart).Error; err != nil {
			return err
		}
		if len(cart) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Your cart is empty")
		}

		order = models.Order{
			UserID:      userID,
			OrderNumber: generateOrderNumber(),
			Status:      models.OrderPending,
			PlacedAt:    time.Now(),
			Currency:    h.cfg.Currency,
			Notes:       req.Notes,
		}
		snapshotAddress(&order, address)

		var subtotal float64
		for _, line := range cart {
			product := line.Product
			if product == nil || !product.IsActive {
				return fiber.NewError(fiber.StatusBadRequest, "A product in your cart is no longer available")
			}

			// The stock guard in the WHERE clause keeps concurrent checkouts from overselling.
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", product.ID, line.Quantity).
				Update("stock", gorm.Expr("stock - ?", line.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return stockError(product)
			}

			productID := product.ID
			lineTotal := roundMoney(product.Price * float64(line.Quantity))
			order.Items = append(order.Items, models.OrderItem{
				ProductID:   &productID,
				ProductName: product.Name,
				UnitPrice:   product.Price,
				Quantity:    line.Quantity,
				LineTotal:   lineTotal,
			})
			subtotal += lineTotal
		}

		order.Subtotal = roundMoney(subtotal)
		order.ShippingFee = h.ShippingFor(order.Subtotal)
		order.Total = roundMoney(order.Subtotal + order.ShippingFee)

		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return err
	}

	h.metrics.OrdersCreated.Inc()
	h.metrics.OrderRevenue.Add(order.Total)
	middleware.RequestLogger(c, h.log).Info("order placed",
		slog.String("order_number", order.OrderNumber),
		slog.Float64("total", order.Total),
	)

	go h.notify(order, user)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

func snapshotAddress(order *models.Order, address models.Address) {
	id := address.ID
	order.AddressID = &id
	order.ShippingRecipient = address.Recipient
	order.ShippingPhone = address.Phone
	order.ShippingLine1 = address.Line1
	order.ShippingLine2 = address.Line2
	order.ShippingCity = address.City
	order.ShippingState = address.State
	order.ShippingPostalCode = address.PostalCode
	order.ShippingCountry = address.Country
}

func (h *OrderHandler) notify(order models.Order, user models.User) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	items := make([]services.OrderItemNotification, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, services.OrderItemNotification{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
		})
	}

	shipTo := strings.Join(nonEmpty(order.ShippingLine1, order.ShippingLine2, order.ShippingCity,
		order.ShippingPostalCode, order.ShippingCountry), ", ")

	err := h.notifier.NotifyNewOrder(ctx, services.OrderNotification{
		OrderNumber:  order.OrderNumber,
		CustomerName: user.Name,
		Email:        user.Email,
		Items:        items,
		Total:        order.Total,
		Currency:     order.Currency,
		ShipTo:       shipTo,
	})
	if err != nil {
		h.log.Warn("failed to send order notification",
			slog.String("order_number", order.OrderNumber), logger.Err(err))
	}
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseStatusFilter(c *fiber.Ctx) (models.OrderStatus, error) {
	status := models.OrderStatus(strings.ToUpper(c.Query("status")))
	if status != "" && !status.Valid() {
		return "", fiber.NewError(fiber.StatusBadRequest, "Invalid order status")
	}
	return status, nil
}

// ListOrders returns the user's orders, newest first.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	status, err := parseStatusFilter(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Order{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns one of the user's orders.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var order models.Order
	if err := h.db.WithContext(c.UserContext()).Preload("Items").
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return notFound(err, orderNotFound)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// CancelOrder cancels one of the user's pending orders and restocks its items.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var order models.Order
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			return notFound(err, orderNotFound)
		}
		if order.Status != models.OrderPending {
			return fiber.NewError(fiber.StatusBadRequest, "Only pending orders can be cancelled")
		}
		return transition(tx, &order, models.OrderCancelled)
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// transition moves order to status, restocking when it is cancelled.
func transition(tx *gorm.DB, order *models.Order, status models.OrderStatus) error {
	if status == models.OrderCancelled {
		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			if err := tx.Model(&models.Product{}).Where("id = ?", *item.ProductID).
				Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
				return err
			}
		}
	}

	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", status).Error; err != nil {
		return err
	}
	order.Status = status
	return nil
}

// ListAllOrders is the admin listing with status filter and order-number search.
func (h *OrderHandler) ListAllOrders(c *fiber.Ctx) error {
	status, err := parseStatusFilter(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Order{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where(`LOWER(order_number) LIKE ? ESCAPE '\'`, utils.ContainsPattern(search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("User").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetAnyOrder returns any order for admins.
func (h *OrderHandler) GetAnyOrder(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var order models.Order
	if err := h.db.WithContext(c.UserContext()).Preload("Items").Preload("User").
		First(&order, "id = ?", id).Error; err != nil {
		return notFound(err, orderNotFound)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PAID SHIPPED DELIVERED CANCELLED"`
}

// UpdateOrderStatus lets admins move an order through its lifecycle.
// Cancelled orders are final.
func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req updateOrderStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	if err := h.validate.Struct(req); err != nil {
		return err
	}
	status := models.OrderStatus(req.Status)

	var order models.Order
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, "id = ?", id).Error; err != nil {
			return notFound(err, orderNotFound)
		}
		if order.Status == status {
			return nil
		}
		if order.Status == models.OrderCancelled {
			return fiber.NewError(fiber.StatusBadRequest, "Cancelled orders cannot be changed")
		}
		return transition(tx, &order, status)
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
