package models

import (
	"time"
)

// Tag is a free-text label shared between products. Tags are created lazily
// and are never removed by product operations.
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `gorm:"not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`

	// Relationships
	Products []Product `gorm:"many2many:product_tags;" json:"products,omitempty"`
}
