package products

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/auth"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"github.com/mikepea/marketplace/pkg/marketplace/validation"
	"github.com/spf13/cast"
)

// Handler handles product requests
type Handler struct {
	service *Service
}

// NewHandler creates a new products handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrForbidden):
		return auth.StatusFor(err)
	case validation.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
}

// List returns a page of products
// @Summary List products
// @Description List products filtered by status, category and free-text search. Non-published statuses require admin.
// @Tags products
// @Produce json
// @Param category query string false "APP, SAAS, AI_AGENT or TOOL"
// @Param status query string false "PUBLISHED (default) or DRAFT"
// @Param search query string false "Case-insensitive match on name or description"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(12)
// @Param sort query string false "latest, popular or views" default(latest)
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{} "Admin required for drafts"
// @Router /products [get]
func (h *Handler) List(c *gin.Context) {
	filter := ListFilter{
		Category: models.Category(c.Query("category")),
		Status:   models.ProductStatus(c.Query("status")),
		Search:   c.Query("search"),
		Page:     cast.ToInt(c.Query("page")),
		Limit:    cast.ToInt(c.Query("limit")),
		SortBy:   SortBy(c.Query("sort")),
	}

	if filter.Status != "" && filter.Status != models.StatusPublished {
		if _, err := auth.RequireAdmin(auth.IdentityFrom(c)); err != nil {
			auth.Abort(c, err)
			return
		}
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"success":    false,
			"error":      err.Error(),
			"products":   []ProductResponse{},
			"pagination": Pagination{Page: 1, Limit: DefaultLimit},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"products":   productsToResponse(page.Products),
		"pagination": page.Pagination,
	})
}

// Get returns a product by slug
// @Summary Get a product
// @Description Get a product with tags, creator, related products and SEO metadata
// @Tags products
// @Produce json
// @Param slug path string true "Product slug"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Product not found"
// @Router /products/{slug} [get]
func (h *Handler) Get(c *gin.Context) {
	detail, err := h.service.GetBySlug(c.Request.Context(), auth.IdentityFrom(c), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"product": productToResponse(detail.Product),
		"related": detail.Related,
		"seo":     SEO(detail.Product),
	})
}

// Click records a click-through
func (h *Handler) Click(c *gin.Context) {
	ok := h.service.IncrementClickCount(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

// Create creates a product
// @Summary Create a product
// @Description Create a product. Accepts JSON or form-encoded bodies; tech_stack and tags are comma-separated.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body validation.Form true "Product fields"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 401 {object} map[string]interface{} "Not authenticated"
// @Failure 403 {object} map[string]interface{} "Not an admin"
// @Security BearerAuth
// @Router /admin/products [post]
func (h *Handler) Create(c *gin.Context) {
	var form validation.Form
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	product, err := h.service.Create(c.Request.Context(), auth.IdentityFrom(c), form)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "product": productToResponse(product)})
}

// Update replaces a product
// @Summary Replace a product
// @Description Full replace: omitted optional fields are cleared and tags are replaced. The slug never changes.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param request body validation.Form true "Product fields"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 404 {object} map[string]interface{} "Product not found"
// @Security BearerAuth
// @Router /admin/products/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var form validation.Form
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	product, err := h.service.Update(c.Request.Context(), auth.IdentityFrom(c), c.Param("id"), form)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": productToResponse(product)})
}

// Delete deletes a product
// @Summary Delete a product
// @Tags admin
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Product not found"
// @Security BearerAuth
// @Router /admin/products/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), auth.IdentityFrom(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RegisterRoutes registers public product routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products", h.List)
	rg.GET("/products/:slug", h.Get)
	rg.POST("/products/:id/click", h.Click)
}

// RegisterAdminRoutes registers product management routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/products", h.Create)
	rg.PUT("/products/:id", h.Update)
	rg.DELETE("/products/:id", h.Delete)
}
