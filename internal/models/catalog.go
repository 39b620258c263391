package models

import "github.com/google/uuid"

type Category struct {
	BaseModel
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Products    []Product `json:"products,omitempty"`
}

type Product struct {
	BaseModel
	CategoryID  *uuid.UUID `gorm:"type:uuid;index" json:"categoryId"`
	Category    *Category  `json:"category,omitempty"`
	Name        string     `gorm:"not null" json:"name"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Description string     `json:"description"`
	Price       float64    `gorm:"not null" json:"price"`
	Stock       int        `gorm:"not null;default:0" json:"stock"`
	Images      []string   `gorm:"serializer:json;type:text" json:"images"`
	IsActive    bool       `gorm:"not null" json:"isActive"`
}
