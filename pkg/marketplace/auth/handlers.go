package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"gorm.io/gorm"
)

// Handler handles session requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in API responses
type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Role  string `json:"role"`
}

// ToUserResponse projects a user for API responses
func ToUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Image: u.Image, Role: string(u.Role)}
}

// Me returns the current user
// @Summary Get current user
// @Description Get the currently authenticated user's profile
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]string "Not authenticated"
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	id, err := RequireAuth(IdentityFrom(c))
	if err != nil {
		Abort(c, err)
		return
	}

	var user models.User
	if err := h.db.First(&user, id.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": ToUserResponse(&user)})
}

// Logout clears the session cookie
// @Summary Logout
// @Description Clear the session cookie. Bearer tokens expire on their own.
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
	rg.POST("/logout", h.Logout)
}
