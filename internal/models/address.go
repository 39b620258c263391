package models

import "github.com/google/uuid"

// Address is an entry in a user's address book. At most one per user has IsDefault set.
type Address struct {
	BaseModel
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"userId"`
	Label      string    `json:"label"`
	Recipient  string    `json:"recipient"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	IsDefault  bool      `gorm:"not null;default:false" json:"isDefault"`
}
