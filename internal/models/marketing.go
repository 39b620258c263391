package models

// Banner is a promotional slide on the storefront home page.
type Banner struct {
	BaseModel
	Title     string `gorm:"not null" json:"title"`
	Subtitle  string `json:"subtitle"`
	Image     string `json:"image"`
	Link      string `json:"link"`
	SortOrder int    `gorm:"not null;default:0" json:"sortOrder"`
	IsActive  bool   `gorm:"not null" json:"isActive"`
}
