package tags

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"github.com/mikepea/marketplace/pkg/marketplace/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tagNamespace seeds the stable slugs of names that normalize to nothing
var tagNamespace = uuid.MustParse("5f0c3c4e-7d1a-4a8e-9a53-2a1f0e6b8c11")

// Resolver maps free-text tag names to persisted tags, creating missing ones
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a new tag resolver
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// SlugFor returns the stable slug of a tag name. Unlike product slugs it
// carries no timestamp. Names without any Latin word characters get a slug
// derived from a name-based UUID so that distinct names stay distinct.
func SlugFor(name string) string {
	if s := slug.Normalize(name); s != "" {
		return s
	}
	return "tag-" + uuid.NewSHA1(tagNamespace, []byte(name)).String()[:8]
}

// Resolve returns one tag per distinct slug in names, in first-seen order.
// Names sharing a slug collapse to a single tag; the first spelling wins
// when the tag is new. Creation is an insert that does nothing on a slug
// conflict followed by a read, so concurrent resolvers of the same new name
// converge on one row.
func (r *Resolver) Resolve(ctx context.Context, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		if name == "" {
			continue
		}
		s := SlugFor(name)
		if seen[s] {
			continue
		}
		seen[s] = true

		tag, err := r.upsert(ctx, name, s)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

func (r *Resolver) upsert(ctx context.Context, name, s string) (*models.Tag, error) {
	db := r.db.WithContext(ctx)

	candidate := models.Tag{Name: name, Slug: s}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(&candidate).Error
	if err != nil {
		return nil, fmt.Errorf("create tag %q: %w", s, err)
	}

	var tag models.Tag
	if err := db.Where("slug = ?", s).First(&tag).Error; err != nil {
		return nil, fmt.Errorf("load tag %q: %w", s, err)
	}
	return &tag, nil
}
