// Package admin serves the back-office endpoints: catalogue statistics and
// user role management.
package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/auth"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler handles admin requests
type Handler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, logger *zap.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Image        string `json:"image,omitempty"`
	Role         string `json:"role"`
	CreatedAt    string `json:"created_at"`
	ProductCount int64  `json:"product_count"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

// StatsResponse represents catalogue statistics
type StatsResponse struct {
	TotalProducts     int64 `json:"total_products"`
	PublishedProducts int64 `json:"published_products"`
	DraftProducts     int64 `json:"draft_products"`
	TotalViews        int64 `json:"total_views"`
	TotalClicks       int64 `json:"total_clicks"`
	TotalTags         int64 `json:"total_tags"`
	TotalUsers        int64 `json:"total_users"`
	AdminUsers        int64 `json:"admin_users"`
}

func (h *Handler) toResponse(user *models.User) UserResponse {
	var productCount int64
	h.db.Model(&models.Product{}).Where("created_by_id = ?", user.ID).Count(&productCount)

	return UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Image:        user.Image,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		ProductCount: productCount,
	}
}

// ListUsers returns all users
// @Summary List users
// @Tags admin
// @Produce json
// @Param q query string false "Search by email or name"
// @Param role query string false "USER or ADMIN"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.WithContext(c.Request.Context()).Order("created_at DESC")

	if search := strings.ToLower(strings.TrimSpace(c.Query("q"))); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", pattern, pattern)
	}

	if role := models.Role(strings.ToUpper(c.Query("role"))); role != "" {
		query = query.Where("role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		h.logger.Error("list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = h.toResponse(&users[i])
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "users": responses})
}

// GetUser returns a single user by ID
// @Summary Get a user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "User not found"
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	id, err := cast.ToUintE(c.Param("id"))
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": h.toResponse(&user)})
}

// UpdateUser changes a user's name or role
// @Summary Update a user
// @Description Change a user's display name or role. Admins cannot demote themselves.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 404 {object} map[string]interface{} "User not found"
// @Security BearerAuth
// @Router /admin/users/{id} [put]
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := cast.ToUintE(c.Param("id"))
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid user ID"})
		return
	}

	db := h.db.WithContext(c.Request.Context())

	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if req.Role != nil {
		role := models.Role(strings.ToUpper(*req.Role))
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid role"})
			return
		}
		if caller := auth.IdentityFrom(c); caller != nil && caller.UserID == user.ID && role != models.RoleAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Cannot demote yourself"})
			return
		}
		updates["role"] = role
	}

	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			h.logger.Error("update user", zap.Uint("user_id", user.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update user"})
			return
		}
		h.logger.Info("user updated", zap.Uint("user_id", user.ID), zap.Any("changes", updates))
	}

	db.First(&user, id)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": h.toResponse(&user)})
}

// GetStats returns catalogue statistics
// @Summary Catalogue statistics
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse
	db := h.db.WithContext(c.Request.Context())

	db.Model(&models.Product{}).Count(&stats.TotalProducts)
	db.Model(&models.Product{}).Where("status = ?", models.StatusPublished).Count(&stats.PublishedProducts)
	db.Model(&models.Product{}).Where("status = ?", models.StatusDraft).Count(&stats.DraftProducts)
	db.Model(&models.Tag{}).Count(&stats.TotalTags)
	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&stats.AdminUsers)

	db.Model(&models.Product{}).Select("COALESCE(SUM(view_count), 0)").Scan(&stats.TotalViews)
	db.Model(&models.Product{}).Select("COALESCE(SUM(click_count), 0)").Scan(&stats.TotalClicks)

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
}

// PromoteAdmins grants the ADMIN role to existing users whose email is
// listed. Users that sign up later are promoted at first login.
func PromoteAdmins(ctx context.Context, db *gorm.DB, emails []string) (int64, error) {
	var lowered []string
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			lowered = append(lowered, e)
		}
	}
	if len(lowered) == 0 {
		return 0, nil
	}

	res := db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) IN ? AND role <> ?", lowered, models.RoleAdmin).
		Update("role", models.RoleAdmin)
	return res.RowsAffected, res.Error
}
