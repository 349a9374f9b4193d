package models

import (
	"time"
)

// OIDCIdentity links a user to an identity provider subject
type OIDCIdentity struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Provider  string    `gorm:"not null;uniqueIndex:idx_oidc_provider_subject" json:"provider"` // provider key, e.g. "google"
	Subject   string    `gorm:"not null;uniqueIndex:idx_oidc_provider_subject" json:"subject"`  // sub claim
	Email     string    `json:"email"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
