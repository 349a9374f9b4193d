package tags

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles tag-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int64  `json:"product_count"`
}

// List returns every tag ordered by name with the number of products using it
// @Summary List tags
// @Description List all tags with product counts
// @Tags tags
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	var results []TagResponse
	err := h.db.WithContext(c.Request.Context()).Table("tags").
		Select("tags.id, tags.name, tags.slug, COUNT(product_tags.product_id) AS product_count").
		Joins("LEFT JOIN product_tags ON product_tags.tag_id = tags.id").
		Group("tags.id, tags.name, tags.slug").
		Order("tags.name ASC").
		Scan(&results).Error

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch tags"})
		return
	}
	if results == nil {
		results = []TagResponse{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "tags": results})
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
}
