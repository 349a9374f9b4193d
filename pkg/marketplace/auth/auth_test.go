package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	models.AutoMigrate(db)
	return db
}

func testIssuer() *TokenIssuer {
	return NewTokenIssuer("test-secret", time.Hour)
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(db, testIssuer()))
	handler := NewHandler(db)
	handler.RegisterRoutes(r.Group("/auth"))
	r.GET("/admin/ping", AdminOnly(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	user := &models.User{Email: email, Name: "Test User", Role: role}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func getAuthHeader(t *testing.T, user *models.User) string {
	token, err := testIssuer().GenerateToken(user)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return "Bearer " + token
}

func TestJWTToken(t *testing.T) {
	issuer := testIssuer()
	user := &models.User{ID: 7, Email: "test@example.com", Role: models.RoleAdmin}

	token, err := issuer.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 7 || claims.Email != "test@example.com" || claims.Role != models.RoleAdmin {
		t.Errorf("Unexpected claims: %+v", claims)
	}

	if _, err := NewTokenIssuer("other-secret", time.Hour).ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := issuer.ValidateToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestJWTTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Nanosecond)
	token, err := issuer.GenerateToken(&models.User{ID: 1})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	time.Sleep(time.Second)

	if _, err := issuer.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name string
		id   *Identity
		want error
	}{
		{"anonymous", nil, ErrUnauthenticated},
		{"zero user", &Identity{}, ErrUnauthenticated},
		{"regular user", &Identity{UserID: 1, Role: models.RoleUser}, ErrForbidden},
		{"admin", &Identity{UserID: 2, Role: models.RoleAdmin}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RequireAdmin(tt.id)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if tt.want == nil && got != tt.id {
				t.Error("Expected the identity to be returned")
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	if _, err := RequireAuth(nil); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated, got %v", err)
	}
	id := &Identity{UserID: 3, Role: models.RoleUser}
	if got, err := RequireAuth(id); err != nil || got != id {
		t.Errorf("Expected identity back, got %v, %v", got, err)
	}
}

func TestMe(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)
	user := createTestUser(t, db, "me@example.com", models.RoleUser)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", getAuthHeader(t, user))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool         `json:"success"`
		User    UserResponse `json:"user"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || resp.User.Email != "me@example.com" || resp.User.Role != "USER" {
		t.Errorf("Unexpected response: %s", w.Body.String())
	}
}

func TestMeAnonymous(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/auth/me", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestMeWithSessionCookie(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)
	user := createTestUser(t, db, "cookie@example.com", models.RoleUser)
	token, _ := testIssuer().GenerateToken(user)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestTokenForDeletedUserRejected(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)
	ghost := &models.User{ID: 999, Email: "ghost@example.com", Role: models.RoleAdmin}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set("Authorization", getAuthHeader(t, ghost))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestAdminOnly(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)
	user := createTestUser(t, db, "user@example.com", models.RoleUser)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"user", getAuthHeader(t, user), http.StatusForbidden},
		{"admin", getAuthHeader(t, admin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/admin/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestRoleReadFromDatabase(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)
	user := createTestUser(t, db, "promoted@example.com", models.RoleUser)
	header := getAuthHeader(t, user)

	// Promote after the token was issued
	db.Model(user).Update("role", models.RoleAdmin)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set("Authorization", header)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 after promotion, got %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/auth/logout", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if cookie := w.Header().Get("Set-Cookie"); cookie == "" {
		t.Error("Expected session cookie to be cleared")
	}
}
