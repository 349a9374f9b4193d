package tags

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

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
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(db).RegisterRoutes(r.Group("/api"))
	return r
}

func TestSlugFor(t *testing.T) {
	if got := SlugFor("Chat Bot"); got != "chat-bot" {
		t.Errorf("Expected chat-bot, got %s", got)
	}
	if SlugFor("챗봇") != SlugFor("챗봇") {
		t.Error("Expected non-Latin slug to be stable")
	}
	if SlugFor("챗봇") == SlugFor("번역") {
		t.Error("Expected distinct non-Latin names to get distinct slugs")
	}
	if !strings.HasPrefix(SlugFor("챗봇"), "tag-") {
		t.Errorf("Expected tag- prefix, got %s", SlugFor("챗봇"))
	}
}

func TestResolveCreatesAndReuses(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	first, err := r.Resolve(ctx, []string{"LLM", "Chat Bot"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(first) != 2 || first[0].Slug != "llm" || first[1].Slug != "chat-bot" {
		t.Fatalf("Unexpected tags: %+v", first)
	}

	second, err := r.Resolve(ctx, []string{"chat bot", "New One"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if second[0].ID != first[1].ID {
		t.Errorf("Expected existing tag %d to be reused, got %d", first[1].ID, second[0].ID)
	}
	if second[0].Name != "Chat Bot" {
		t.Errorf("Expected original spelling to be kept, got %s", second[0].Name)
	}

	var count int64
	db.Model(&models.Tag{}).Count(&count)
	if count != 3 {
		t.Errorf("Expected 3 tags, got %d", count)
	}
}

func TestResolveCollapsesDuplicates(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)

	tags, err := r.Resolve(context.Background(), []string{"AI", "Tools", "ai", "AI", "tools "})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("Expected 2 tags after collapsing duplicates, got %d", len(tags))
	}
	if tags[0].Name != "AI" || tags[1].Name != "Tools" {
		t.Errorf("Expected first-seen order and spelling, got %s, %s", tags[0].Name, tags[1].Name)
	}
}

func TestResolveEmpty(t *testing.T) {
	db := setupTestDB(t)
	tags, err := NewResolver(db).Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("Expected no tags, got %d", len(tags))
	}
}

func TestResolveConcurrent(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tags, err := r.Resolve(context.Background(), []string{"Agents"})
			if err == nil {
				ids[i] = tags[0].ID
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("Resolve %d failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("Expected all resolvers to converge on tag %d, got %d", ids[0], ids[i])
		}
	}
}

func TestListWithCounts(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	user := models.User{Email: "admin@example.com", Name: "Admin", Role: models.RoleAdmin}
	db.Create(&user)
	tags, _ := NewResolver(db).Resolve(context.Background(), []string{"Zeta", "Alpha", "Unused"})

	for i, name := range []string{"One", "Two"} {
		p := models.Product{
			Name: name, Slug: strings.ToLower(name), Description: "A product description",
			Category: models.CategoryTool, ServiceURL: "https://example.com", CreatedByID: user.ID,
		}
		db.Create(&p)
		db.Model(&p).Association("Tags").Append(&tags[0])
		if i == 0 {
			db.Model(&p).Association("Tags").Append(&tags[1])
		}
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/tags", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool          `json:"success"`
		Tags    []TagResponse `json:"tags"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if len(resp.Tags) != 3 {
		t.Fatalf("Expected 3 tags, got %d", len(resp.Tags))
	}
	want := map[string]int64{"Alpha": 1, "Unused": 0, "Zeta": 2}
	order := []string{"Alpha", "Unused", "Zeta"}
	for i, tag := range resp.Tags {
		if tag.Name != order[i] {
			t.Errorf("Expected tag %d to be %s, got %s", i, order[i], tag.Name)
		}
		if tag.ProductCount != want[tag.Name] {
			t.Errorf("Expected %s to have %d products, got %d", tag.Name, want[tag.Name], tag.ProductCount)
		}
	}
}
