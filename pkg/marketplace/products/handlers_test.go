package products

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/auth"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
)

var testIssuer = auth.NewTokenIssuer("test-secret", time.Hour)

func setupTestRouter(env *testEnv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(env.svc)

	api := r.Group("/api")
	api.Use(auth.Authenticate(env.db, testIssuer))
	handler.RegisterRoutes(api)
	handler.RegisterAdminRoutes(api.Group("/admin"))
	return r
}

func bearer(t *testing.T, id *auth.Identity) string {
	t.Helper()
	token, err := testIssuer.GenerateToken(&models.User{ID: id.UserID, Email: id.Email, Role: id.Role})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

type listResponse struct {
	Success    bool              `json:"success"`
	Error      string            `json:"error"`
	Products   []ProductResponse `json:"products"`
	Pagination Pagination        `json:"pagination"`
}

type productEnvelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Product ProductResponse `json:"product"`
	Related []Related       `json:"related"`
	SEO     SEOResponse     `json:"seo"`
}

func TestHandlerCreateProduct(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env)

	body := map[string]string{
		"name":         "Agent Smith",
		"description":  "An agent that writes agents",
		"category":     "AI_AGENT",
		"service_url":  "https://agent.example.com",
		"pricing_tier": "PAID",
		"price":        "12.50",
		"tech_stack":   "Go, gRPC",
		"tags":         "Agents, LLM",
	}
	resp := doJSON(t, router, "POST", "/api/admin/products", body, bearer(t, env.admin))

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var out productEnvelope
	json.Unmarshal(resp.Body.Bytes(), &out)

	if !out.Success {
		t.Error("Expected success true")
	}
	if !strings.HasPrefix(out.Product.Slug, "agent-smith-") {
		t.Errorf("Expected slug prefix 'agent-smith-', got %s", out.Product.Slug)
	}
	if out.Product.Status != "DRAFT" {
		t.Errorf("Expected status DRAFT, got %s", out.Product.Status)
	}
	if out.Product.Price == nil || *out.Product.Price != "12.5" {
		t.Errorf("Expected price 12.5, got %v", out.Product.Price)
	}
	if len(out.Product.TechStack) != 2 || len(out.Product.Tags) != 2 {
		t.Errorf("Expected 2 tech stack entries and 2 tags, got %v / %v", out.Product.TechStack, out.Product.Tags)
	}
	if out.Product.CreatedBy == nil || out.Product.CreatedBy.Email != "admin@example.com" {
		t.Errorf("Expected creator projection, got %+v", out.Product.CreatedBy)
	}
}

func TestHandlerCreateAcceptsForm(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env)

	form := url.Values{}
	form.Set("name", "Form Tool")
	form.Set("description", "Submitted as a classic form")
	form.Set("category", "TOOL")
	form.Set("service_url", "https://form.example.com")

	req, _ := http.NewRequest("POST", "/api/admin/products", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", bearer(t, env.admin))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestHandlerCreateErrors(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env)

	tests := []struct {
		name   string
		auth   string
		body   map[string]string
		status int
		errMsg string
	}{
		{"anonymous", "", map[string]string{"name": "x"}, http.StatusUnauthorized, "login required"},
		{"non-admin", bearer(t, env.user), map[string]string{"name": "Valid name"}, http.StatusForbidden, "admin privileges required"},
		{"short name", bearer(t, env.admin), map[string]string{
			"name": "x", "description": "long enough text", "category": "APP", "service_url": "https://x.com",
		}, http.StatusBadRequest, "Product name must be at least 2 characters"},
		{"bad category", bearer(t, env.admin), map[string]string{
			"name": "Okay", "description": "long enough text", "category": "GAME", "service_url": "https://x.com",
		}, http.StatusBadRequest, "Please select a valid category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, router, "POST", "/api/admin/products", tt.body, tt.auth)
			if resp.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, resp.Code, resp.Body.String())
			}
			var out map[string]interface{}
			json.Unmarshal(resp.Body.Bytes(), &out)
			if out["success"] != false {
				t.Errorf("Expected success false, got %v", out["success"])
			}
			if out["error"] != tt.errMsg {
				t.Errorf("Expected error %q, got %v", tt.errMsg, out["error"])
			}
		})
	}

	if n := env.count(t); n != 0 {
		t.Errorf("Expected no products, got %d", n)
	}
}

func TestHandlerListProducts(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env)
	env.seed(t, seed{name: "Public One", status: models.StatusPublished, category: models.CategoryApp, clicks: 2})
	env.seed(t, seed{name: "Public Two", status: models.StatusPublished, category: models.CategoryApp, clicks: 9, age: time.Hour})
	env.seed(t, seed{name: "Hidden", status: models.StatusDraft, category: models.CategoryApp})

	resp := doJSON(t, router, "GET", "/api/products?sort=popular&limit=abc", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var out listResponse
	json.Unmarshal(resp.Body.Bytes(), &out)

	if len(out.Products) != 2 {
		t.Fatalf("Expected 2 products, got %d", len(out.Products))
	}
	if out.Products[0].Name != "Public Two" {
		t.Errorf("Expected most clicked first, got %s", out.Products[0].Name)
	}
	if out.Pagination.Limit != DefaultLimit || out.Pagination.Total != 2 || out.Pagination.TotalPages != 1 {
		t.Errorf("Unexpected pagination: %+v", out.Pagination)
	}
}

func TestHandlerListDraftsRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env)
	env.seed(t, seed{name: "Hidden", status: models.StatusDraft, category: models.CategoryApp})

	resp := doJSON(t, router, "GET", "/api/products?status=DRAFT", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}

	resp = doJSON(t, router, "GET", "/api/products?status=DRAFT", nil, bearer(t, env.user))
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}

	resp = doJSON(t, router, "GET", "/api/products?status=DRAFT", nil, bearer(t, env.admin))
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var out listResponse
	json.Unmarshal(resp.Body.Bytes(), &out)
	if len(out.Products) != 1 || out.Products[0].Status != "DRAFT" {
		t.Errorf("Expected the draft product, got %+v", out.Products)
	}
}

func TestHandlerGetProduct(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env)
	p := env.seed(t, seed{name: "Detail", status: models.StatusPublished, category: models.CategorySaaS})
	env.seed(t, seed{name: "Neighbour", status: models.StatusPublished, category: models.CategorySaaS})

	resp := doJSON(t, router, "GET", "/api/products/"+p.Slug, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out productEnvelope
	json.Unmarshal(resp.Body.Bytes(), &out)

	if out.Product.ID != p.ID {
		t.Errorf("Expected product %s, got %s", p.ID, out.Product.ID)
	}
	if len(out.Related) != 1 || out.Related[0].Name != "Neighbour" {
		t.Errorf("Expected one related product, got %+v", out.Related)
	}
	if out.SEO.Title != "Detail - "+SiteName {
		t.Errorf("Expected fallback SEO title, got %s", out.SEO.Title)
	}

	resp = doJSON(t, router, "GET", "/api/products/nope", nil, "")
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestHandlerUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env)
	admin := bearer(t, env.admin)

	form := exampleForm()
	form.DemoURL = "https://demo.example.com"
	created, err := env.svc.Create(context.Background(), env.admin, form)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	body := map[string]string{
		"name":        "Renamed",
		"description": "A fresh description",
		"category":    "SAAS",
		"service_url": "https://renamed.example.com",
		"status":      "PUBLISHED",
	}
	resp := doJSON(t, router, "PUT", "/api/admin/products/"+created.ID, body, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out productEnvelope
	json.Unmarshal(resp.Body.Bytes(), &out)
	if out.Product.Slug != created.Slug {
		t.Errorf("Expected slug %s to be kept, got %s", created.Slug, out.Product.Slug)
	}
	if out.Product.DemoURL != nil {
		t.Errorf("Expected demo_url cleared, got %v", *out.Product.DemoURL)
	}

	resp = doJSON(t, router, "PUT", "/api/admin/products/missing", body, admin)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}

	resp = doJSON(t, router, "DELETE", "/api/admin/products/"+created.ID, nil, bearer(t, env.user))
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}

	resp = doJSON(t, router, "DELETE", "/api/admin/products/"+created.ID, nil, admin)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
	env.tasks.Wait()
	if n := env.count(t); n != 0 {
		t.Errorf("Expected product deleted, %d left", n)
	}
}

func TestHandlerClick(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env)
	p := env.seed(t, seed{name: "Clickable", status: models.StatusPublished, category: models.CategoryTool})

	resp := doJSON(t, router, "POST", "/api/products/"+p.ID+"/click", nil, "")
	var out map[string]interface{}
	json.Unmarshal(resp.Body.Bytes(), &out)
	if resp.Code != http.StatusOK || out["success"] != true {
		t.Errorf("Expected success, got %d %v", resp.Code, out)
	}

	resp = doJSON(t, router, "POST", "/api/products/missing/click", nil, "")
	out = nil
	json.Unmarshal(resp.Body.Bytes(), &out)
	if resp.Code != http.StatusOK || out["success"] != false {
		t.Errorf("Expected success false for unknown product, got %d %v", resp.Code, out)
	}
}
