package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

const lowStockThreshold = 5

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db       *gorm.DB
	validate *validation.Validator
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, validate *validation.Validator) *AdminHandler {
	return &AdminHandler{db: db, validate: validate}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var totalUsers, totalOrders, totalProducts, lowStock int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Product{}).Count(&totalProducts).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Product{}).
		Where("is_active = ? AND stock <= ?", true, lowStockThreshold).
		Count(&lowStock).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var statusCounts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64, len(models.OrderStatuses))
	for _, s := range models.OrderStatuses {
		ordersByStatus[string(s)] = 0
	}
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	var totalRevenue float64
	if err := db.Model(&models.Order{}).
		Where("status <> ?", models.OrderCancelled).
		Select("COALESCE(SUM(total), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var todayRevenue float64
	if err := db.Model(&models.Order{}).
		Where("status <> ? AND placed_at >= ?", models.OrderCancelled, startOfDay).
		Select("COALESCE(SUM(total), 0)").
		Scan(&todayRevenue).Error; err != nil {
		return err
	}

	var recent []models.Order
	if err := db.Preload("User").
		Order("placed_at desc").
		Limit(5).
		Find(&recent).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"totalUsers":     totalUsers,
			"totalOrders":    totalOrders,
			"totalProducts":  totalProducts,
			"lowStock":       lowStock,
			"totalRevenue":   roundMoney(totalRevenue),
			"todayRevenue":   roundMoney(todayRevenue),
			"ordersByStatus": ordersByStatus,
			"recentOrders":   recent,
		},
	})
}

type userListItem struct {
	models.User
	OrderCount int64   `json:"orderCount"`
	TotalSpent float64 `json:"totalSpent"`
}

// ListUsers returns users with pagination, search and order totals.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	db := h.db.WithContext(c.UserContext())
	query := db.Model(&models.User{})

	if search := c.Query("search"); search != "" {
		pattern := utils.ContainsPattern(search)
		query = query.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if role := models.Role(c.Query("role")); role != "" {
		if !role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid role")
		}
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	type userStats struct {
		UserID     uuid.UUID
		OrderCount int64
		TotalSpent float64
	}
	var stats []userStats
	if len(ids) > 0 {
		if err := db.Model(&models.Order{}).
			Select("user_id, count(*) as order_count, COALESCE(SUM(total), 0) as total_spent").
			Where("user_id IN ? AND status <> ?", ids, models.OrderCancelled).
			Group("user_id").
			Scan(&stats).Error; err != nil {
			return err
		}
	}

	byUser := make(map[uuid.UUID]userStats, len(stats))
	for _, s := range stats {
		byUser[s.UserID] = s
	}

	result := make([]userListItem, len(users))
	for i, u := range users {
		s := byUser[u.ID]
		result[i] = userListItem{User: u, OrderCount: s.OrderCount, TotalSpent: roundMoney(s.TotalSpent)}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       result,
		"pagination": pg.Meta(total),
	})
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

// UpdateUserRole promotes or demotes a user. Admins cannot change their own role.
func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	callerID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if id == callerID {
		return fiber.NewError(fiber.StatusBadRequest, "You cannot change your own role")
	}

	var req updateRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	var user models.User
	db := h.db.WithContext(c.UserContext())
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return notFound(err, "User not found")
	}

	user.Role = models.Role(req.Role)
	if err := db.Model(&user).Update("role", user.Role).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}
