// Package redirect sends visitors from /go/:slug to a product's service URL,
// counting the click-through on the way.
package redirect

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"gorm.io/gorm"
)

// ClickRecorder counts a click-through without blocking the caller
type ClickRecorder interface {
	RecordClick(productID string)
}

// Handler handles redirect requests
type Handler struct {
	db     *gorm.DB
	clicks ClickRecorder
}

// NewHandler creates a new redirect handler
func NewHandler(db *gorm.DB, clicks ClickRecorder) *Handler {
	return &Handler{db: db, clicks: clicks}
}

// Redirect sends the visitor to the product's service URL.
// Only published products redirect; drafts look the same as unknown slugs.
func (h *Handler) Redirect(c *gin.Context) {
	var product models.Product
	err := h.db.WithContext(c.Request.Context()).
		Select("id", "service_url").
		Where("slug = ? AND status = ?", c.Param("slug"), models.StatusPublished).
		First(&product).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Product not found"})
		return
	}

	h.clicks.RecordClick(product.ID)

	c.Redirect(http.StatusFound, product.ServiceURL)
}

// RegisterRoutes registers redirect routes on the root router
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/go/:slug", h.Redirect)
}
