// Package validation turns raw product form input into a typed, normalized record.
package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"github.com/shopspring/decimal"
)

// Form is the raw product input. Every field is a string as submitted; an
// empty string means absent. TechStack and Tags are comma-separated lists.
// Field order is the order rules are reported in.
type Form struct {
	Name            string `json:"name" form:"name" validate:"required,min=2"`
	Description     string `json:"description" form:"description" validate:"required,min=10"`
	Category        string `json:"category" form:"category" validate:"required,oneof=APP SAAS AI_AGENT TOOL"`
	ServiceURL      string `json:"service_url" form:"service_url" validate:"required,url"`
	ThumbnailURL    string `json:"thumbnail_url" form:"thumbnail_url"`
	DemoURL         string `json:"demo_url" form:"demo_url" validate:"omitempty,url"`
	VideoURL        string `json:"video_url" form:"video_url" validate:"omitempty,url"`
	PricingTier     string `json:"pricing_tier" form:"pricing_tier" validate:"oneof=FREE FREEMIUM PAID ENTERPRISE"`
	Price           string `json:"price" form:"price" validate:"omitempty,price"`
	TechStack       string `json:"tech_stack" form:"tech_stack"`
	APIEndpoint     string `json:"api_endpoint" form:"api_endpoint"`
	MetaTitle       string `json:"meta_title" form:"meta_title"`
	MetaDescription string `json:"meta_description" form:"meta_description"`
	Status          string `json:"status" form:"status" validate:"oneof=DRAFT PUBLISHED"`
	Tags            string `json:"tags" form:"tags"`
}

// ProductInput is a validated Form. Optional strings are nil when absent.
type ProductInput struct {
	Name            string
	Description     string
	Category        models.Category
	ServiceURL      string
	ThumbnailURL    *string
	DemoURL         *string
	VideoURL        *string
	PricingTier     models.PricingTier
	Price           decimal.NullDecimal
	TechStack       []string
	APIEndpoint     *string
	MetaTitle       *string
	MetaDescription *string
	Status          models.ProductStatus
	Tags            []string
}

// Error is the first rule a Form violated
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsValidationError reports whether err carries a validation failure
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

var messages = map[string]string{
	"Name.required":        "Product name is required",
	"Name.min":             "Product name must be at least 2 characters",
	"Description.required": "Description is required",
	"Description.min":      "Description must be at least 10 characters",
	"Category.required":    "Please select a category",
	"Category.oneof":       "Please select a valid category",
	"ServiceURL.required":  "Service URL is required",
	"ServiceURL.url":       "Please enter a valid URL",
	"DemoURL.url":          "Please enter a valid demo URL",
	"VideoURL.url":         "Please enter a valid video URL",
	"PricingTier.oneof":    "Please select a valid pricing tier",
	"Price.price":          "Price must be a non-negative number",
	"Status.oneof":         "Please select a valid status",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && !d.IsNegative()
	})
	return v
}

// Validate checks f and returns the normalized input, or an *Error for the
// first failing field in declaration order.
func Validate(f Form) (*ProductInput, error) {
	if f.PricingTier == "" {
		f.PricingTier = string(models.PricingFree)
	}
	if f.Status == "" {
		f.Status = string(models.StatusDraft)
	}

	if err := validate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return nil, err
		}
		fe := fieldErrs[0]
		msg, ok := messages[fe.StructField()+"."+fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		return nil, &Error{Field: fe.StructField(), Message: msg}
	}

	in := &ProductInput{
		Name:            f.Name,
		Description:     f.Description,
		Category:        models.Category(f.Category),
		ServiceURL:      f.ServiceURL,
		ThumbnailURL:    optional(f.ThumbnailURL),
		DemoURL:         optional(f.DemoURL),
		VideoURL:        optional(f.VideoURL),
		PricingTier:     models.PricingTier(f.PricingTier),
		TechStack:       SplitList(f.TechStack),
		APIEndpoint:     optional(f.APIEndpoint),
		MetaTitle:       optional(f.MetaTitle),
		MetaDescription: optional(f.MetaDescription),
		Status:          models.ProductStatus(f.Status),
		Tags:            SplitList(f.Tags),
	}
	if p := strings.TrimSpace(f.Price); p != "" {
		in.Price = decimal.NullDecimal{Decimal: decimal.RequireFromString(p), Valid: true}
	}
	return in, nil
}

// SplitList splits a comma-separated list, trimming each item and dropping
// empty ones. Order and duplicates are kept.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
