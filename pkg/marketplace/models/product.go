package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Category is the fixed product category enumeration
type Category string

const (
	CategoryApp     Category = "APP"
	CategorySaaS    Category = "SAAS"
	CategoryAIAgent Category = "AI_AGENT"
	CategoryTool    Category = "TOOL"
)

// PricingTier is the commercial tier of a product
type PricingTier string

const (
	PricingFree       PricingTier = "FREE"
	PricingFreemium   PricingTier = "FREEMIUM"
	PricingPaid       PricingTier = "PAID"
	PricingEnterprise PricingTier = "ENTERPRISE"
)

// ProductStatus is the publication state of a product
type ProductStatus string

const (
	StatusDraft     ProductStatus = "DRAFT"
	StatusPublished ProductStatus = "PUBLISHED"
)

// Product is a listed AI product. Slug is assigned at creation and never changes.
// ViewCount and ClickCount only move through atomic increments.
type Product struct {
	ID              string                      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt       time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	Name            string                      `gorm:"not null" json:"name"`
	Slug            string                      `gorm:"uniqueIndex;not null" json:"slug"`
	Description     string                      `gorm:"type:text;not null" json:"description"`
	Category        Category                    `gorm:"type:varchar(20);not null;index" json:"category"`
	ServiceURL      string                      `gorm:"not null" json:"service_url"`
	ThumbnailURL    *string                     `json:"thumbnail_url"`
	DemoURL         *string                     `json:"demo_url"`
	VideoURL        *string                     `json:"video_url"`
	PricingTier     PricingTier                 `gorm:"type:varchar(20);not null;default:'FREE'" json:"pricing_tier"`
	Price           decimal.NullDecimal         `gorm:"type:decimal(10,2)" json:"price"`
	TechStack       datatypes.JSONSlice[string] `json:"tech_stack"`
	APIEndpoint     *string                     `json:"api_endpoint"`
	MetaTitle       *string                     `json:"meta_title"`
	MetaDescription *string                     `json:"meta_description"`
	Status          ProductStatus               `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	ViewCount       int64                       `gorm:"not null;default:0" json:"view_count"`
	ClickCount      int64                       `gorm:"not null;default:0" json:"click_count"`
	CreatedByID     uint                        `gorm:"not null;index" json:"created_by_id"`

	// Relationships
	CreatedBy User  `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Tags      []Tag `gorm:"many2many:product_tags;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
}

// BeforeCreate assigns a random identifier when none is set
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
