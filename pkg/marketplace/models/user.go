package models

import (
	"time"
)

// Role represents a user's marketplace-wide role
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an account created through an identity provider login
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"not null" json:"name"`
	Image     string    `json:"image,omitempty"`
	Role      Role      `gorm:"type:varchar(20);default:'USER';not null" json:"role"`

	// Relationships
	Products       []Product      `gorm:"foreignKey:CreatedByID" json:"products,omitempty"`
	OIDCIdentities []OIDCIdentity `gorm:"foreignKey:UserID" json:"oidc_identities,omitempty"`
}
