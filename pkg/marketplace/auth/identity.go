package auth

import (
	"errors"

	"github.com/mikepea/marketplace/pkg/marketplace/models"
)

var (
	ErrUnauthenticated = errors.New("login required")
	ErrForbidden       = errors.New("admin privileges required")
)

// Identity is the caller of an operation. A nil *Identity is an anonymous caller.
type Identity struct {
	UserID uint
	Email  string
	Name   string
	Role   models.Role
}

// IdentityOf builds the identity of a persisted user
func IdentityOf(u *models.User) *Identity {
	return &Identity{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// IsAdmin reports whether id holds the ADMIN role
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == models.RoleAdmin
}

// RequireAuth fails with ErrUnauthenticated for an anonymous caller.
func RequireAuth(id *Identity) (*Identity, error) {
	if id == nil || id.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	return id, nil
}

// RequireAdmin is RequireAuth plus a role check failing with ErrForbidden.
func RequireAdmin(id *Identity) (*Identity, error) {
	id, err := RequireAuth(id)
	if err != nil {
		return nil, err
	}
	if id.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	return id, nil
}
