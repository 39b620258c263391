package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Order struct {
	BaseModel
	UserID      uuid.UUID   `gorm:"type:uuid;index;not null" json:"userId"`
	User        *User       `json:"user,omitempty"`
	OrderNumber string      `gorm:"uniqueIndex;not null" json:"orderNumber"`
	Status      OrderStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	PlacedAt    time.Time   `gorm:"index" json:"placedAt"`
	Subtotal    float64     `json:"subtotal"`
	ShippingFee float64     `json:"shippingFee"`
	Total       float64     `json:"total"`
	Currency    string      `json:"currency"`
	Notes       string      `json:"notes"`

	// Shipping address snapshot; the address book entry may change later.
	AddressID          *uuid.UUID `gorm:"type:uuid" json:"addressId"`
	ShippingRecipient  string     `json:"shippingRecipient"`
	ShippingPhone      string     `json:"shippingPhone"`
	ShippingLine1      string     `json:"shippingLine1"`
	ShippingLine2      string     `json:"shippingLine2"`
	ShippingCity       string     `json:"shippingCity"`
	ShippingState      string     `json:"shippingState"`
	ShippingPostalCode string     `json:"shippingPostalCode"`
	ShippingCountry    string     `json:"shippingCountry"`

	Items []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"orderId"`
	ProductID   *uuid.UUID `gorm:"type:uuid" json:"productId"`
	ProductName string     `json:"productName"`
	UnitPrice   float64    `json:"unitPrice"`
	Quantity    int        `json:"quantity"`
	LineTotal   float64    `json:"lineTotal"`
}
