package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"gorm.io/gorm"
)

const (
	// ContextKeyIdentity is the key for the caller's *Identity in gin context
	ContextKeyIdentity = "identity"
	// SessionCookie carries the token for browser clients
	SessionCookie = "marketplace_session"
)

// Authenticate resolves an optional session. A request without credentials
// continues anonymously; a bad or expired token is rejected. The role comes
// from the user row so role changes apply without re-login.
func Authenticate(db *gorm.DB, issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := issuer.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Token has expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
			}
			c.Abort()
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyIdentity, IdentityOf(&user))
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		// Expect "Bearer <token>"
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], true
		}
		return "", false
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// AdminOnly aborts unless the caller is an administrator
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := RequireAdmin(IdentityFrom(c)); err != nil {
			Abort(c, err)
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the caller's identity, or nil for anonymous requests
func IdentityFrom(c *gin.Context) *Identity {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}

// StatusFor maps guard errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Abort writes a guard failure in the uniform response shape
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(StatusFor(err), gin.H{"success": false, "error": err.Error()})
}
