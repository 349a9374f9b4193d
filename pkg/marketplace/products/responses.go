package products

import (
	"github.com/mikepea/marketplace/pkg/marketplace/models"
)

// SiteName is appended to product titles without an explicit meta title
const SiteName = "icanagi"

const metaDescriptionLimit = 160

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Slug            string           `json:"slug"`
	Description     string           `json:"description"`
	Category        string           `json:"category"`
	ServiceURL      string           `json:"service_url"`
	ThumbnailURL    *string          `json:"thumbnail_url"`
	DemoURL         *string          `json:"demo_url"`
	VideoURL        *string          `json:"video_url"`
	PricingTier     string           `json:"pricing_tier"`
	Price           *string          `json:"price"`
	TechStack       []string         `json:"tech_stack"`
	APIEndpoint     *string          `json:"api_endpoint"`
	MetaTitle       *string          `json:"meta_title"`
	MetaDescription *string          `json:"meta_description"`
	Status          string           `json:"status"`
	ViewCount       int64            `json:"view_count"`
	ClickCount      int64            `json:"click_count"`
	CreatedByID     uint             `json:"created_by_id"`
	CreatedBy       *CreatorResponse `json:"created_by,omitempty"`
	Tags            []TagResponse    `json:"tags"`
	CreatedAt       string           `json:"created_at"`
	UpdatedAt       string           `json:"updated_at"`
}

// CreatorResponse is the minimal projection of a product's owner
type CreatorResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TagResponse represents a product tag
type TagResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// SEOResponse carries the page title and description of a detail view
type SEOResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func productToResponse(p *models.Product) ProductResponse {
	resp := ProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		Slug:            p.Slug,
		Description:     p.Description,
		Category:        string(p.Category),
		ServiceURL:      p.ServiceURL,
		ThumbnailURL:    p.ThumbnailURL,
		DemoURL:         p.DemoURL,
		VideoURL:        p.VideoURL,
		PricingTier:     string(p.PricingTier),
		TechStack:       []string(p.TechStack),
		APIEndpoint:     p.APIEndpoint,
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		Status:          string(p.Status),
		ViewCount:       p.ViewCount,
		ClickCount:      p.ClickCount,
		CreatedByID:     p.CreatedByID,
		Tags:            make([]TagResponse, len(p.Tags)),
		CreatedAt:       p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:       p.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if resp.TechStack == nil {
		resp.TechStack = []string{}
	}
	if p.Price.Valid {
		price := p.Price.Decimal.String()
		resp.Price = &price
	}
	if p.CreatedBy.ID != 0 {
		resp.CreatedBy = &CreatorResponse{Name: p.CreatedBy.Name, Email: p.CreatedBy.Email}
	}
	for i, t := range p.Tags {
		resp.Tags[i] = TagResponse{ID: t.ID, Name: t.Name, Slug: t.Slug}
	}
	return resp
}

func productsToResponse(list []models.Product) []ProductResponse {
	out := make([]ProductResponse, len(list))
	for i := range list {
		out[i] = productToResponse(&list[i])
	}
	return out
}

// SEO returns the page metadata of p, falling back to the name and a
// truncated description.
func SEO(p *models.Product) SEOResponse {
	seo := SEOResponse{
		Title:       p.Name + " - " + SiteName,
		Description: truncate(p.Description, metaDescriptionLimit),
	}
	if p.MetaTitle != nil && *p.MetaTitle != "" {
		seo.Title = *p.MetaTitle
	}
	if p.MetaDescription != nil && *p.MetaDescription != "" {
		seo.Description = *p.MetaDescription
	}
	return seo
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
