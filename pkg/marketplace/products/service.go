// Package products implements the product catalogue: admin writes, public
// reads, and best-effort view/click counters.
package products

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mikepea/marketplace/pkg/marketplace/auth"
	"github.com/mikepea/marketplace/pkg/marketplace/database"
	"github.com/mikepea/marketplace/pkg/marketplace/media"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"github.com/mikepea/marketplace/pkg/marketplace/revalidate"
	"github.com/mikepea/marketplace/pkg/marketplace/slug"
	"github.com/mikepea/marketplace/pkg/marketplace/tags"
	"github.com/mikepea/marketplace/pkg/marketplace/tasks"
	"github.com/mikepea/marketplace/pkg/marketplace/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("product not found")

const (
	DefaultLimit = 12
	MaxLimit     = 100
	RelatedLimit = 4
)

// SortBy selects the listing order
type SortBy string

const (
	SortLatest  SortBy = "latest"
	SortPopular SortBy = "popular"
	SortViews   SortBy = "views"
)

// replaceColumns are overwritten on every update. Slug, owner, creation time
// and counters are never touched by an update.
var replaceColumns = []string{
	"Name", "Description", "Category", "ServiceURL", "ThumbnailURL", "DemoURL", "VideoURL",
	"PricingTier", "Price", "TechStack", "APIEndpoint", "MetaTitle", "MetaDescription", "Status",
}

// ListFilter selects a page of products. Zero values take defaults:
// status PUBLISHED, page 1, limit 12, sort latest.
type ListFilter struct {
	Category models.Category
	Status   models.ProductStatus
	Search   string
	Page     int
	Limit    int
	SortBy   SortBy
}

func (f ListFilter) normalized() ListFilter {
	if f.Status == "" {
		f.Status = models.StatusPublished
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	switch f.SortBy {
	case SortPopular, SortViews:
	default:
		f.SortBy = SortLatest
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func (f ListFilter) orderClause() string {
	switch f.SortBy {
	case SortPopular:
		return "click_count DESC, created_at DESC"
	case SortViews:
		return "view_count DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

// Pagination describes the window a Page was cut from
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Page is one window of a listing
type Page struct {
	Products   []models.Product
	Pagination Pagination
}

// Related is the summary shape of products shown next to a detail view
type Related struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	ThumbnailURL *string         `json:"thumbnail_url"`
	Category     models.Category `json:"category"`
}

// Detail is a product together with its related products
type Detail struct {
	Product *models.Product
	Related []Related
}

// Service runs product operations. Mutations require an admin identity.
type Service struct {
	db       *gorm.DB
	tags     *tags.Resolver
	tasks    tasks.Runner
	media    media.Host
	notifier revalidate.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMediaHost enables removal of hosted thumbnails on delete
func WithMediaHost(h media.Host) Option {
	return func(s *Service) { s.media = h }
}

// WithNotifier sets the page-cache invalidation sink
func WithNotifier(n revalidate.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source used for slug generation
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a product service
func NewService(db *gorm.DB, resolver *tags.Resolver, runner tasks.Runner, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:     db,
		tags:   resolver,
		tasks:  runner,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates form and stores a new product owned by actor. The slug is
// derived from the name once and made unique by suffixing -1, -2, ...
func (s *Service) Create(ctx context.Context, actor *auth.Identity, form validation.Form) (*models.Product, error) {
	admin, err := auth.RequireAdmin(actor)
	if err != nil {
		return nil, err
	}
	in, err := validation.Validate(form)
	if err != nil {
		return nil, err
	}

	productSlug, err := slug.Unique(ctx, slug.Generate(in.Name, s.now()), s.slugExists)
	if err != nil {
		return nil, s.persistenceError("generate slug", err)
	}

	// Tags are resolved outside the insert; a failed insert may leave new unused tags behind.
	tagList, err := s.tags.Resolve(ctx, in.Tags)
	if err != nil {
		return nil, s.persistenceError("resolve tags", err)
	}

	product := models.Product{Slug: productSlug, CreatedByID: admin.UserID}
	apply(&product, in)
	product.Tags = tagList

	if err := s.db.WithContext(ctx).Omit("Tags.*").Create(&product).Error; err != nil {
		return nil, s.persistenceError("create product", err)
	}

	created, err := s.load(ctx, "id = ?", product.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product created",
		zap.String("id", created.ID),
		zap.String("slug", created.Slug),
		zap.Uint("user_id", admin.UserID),
	)

	s.revalidate(revalidate.PathAdminProducts, revalidate.PathHome, revalidate.ProductPath(created.Slug))
	return created, nil
}

// List returns one page of products matching f plus the total match count.
// The count and the page are separate reads.
func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	f = f.normalized()

	scope := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("status = ?", f.Status)
		if f.Category != "" {
			tx = tx.Where("category = ?", f.Category)
		}
		if f.Search != "" {
			if database.IsPostgres(s.db) {
				pattern := "%" + escapeLike(f.Search) + "%"
				tx = tx.Where(`(name ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\')`, pattern, pattern)
			} else {
				pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
				tx = tx.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
			}
		}
		return tx
	}

	var (
		total    int64
		products []models.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Product{}).Scopes(scope).Count(&total).Error
	})
	g.Go(func() error {
		return s.withDetails(s.db.WithContext(gctx)).
			Scopes(scope).
			Order(f.orderClause()).
			Offset((f.Page - 1) * f.Limit).
			Limit(f.Limit).
			Find(&products).Error
	})
	if err := g.Wait(); err != nil {
		return nil, s.persistenceError("list products", err)
	}

	return &Page{
		Products: products,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(f.Limit))),
		},
	}, nil
}

// GetBySlug loads a product with its tags, creator and related products.
// Drafts are only visible to admins. A successful read schedules a view
// count increment in the background.
func (s *Service) GetBySlug(ctx context.Context, viewer *auth.Identity, productSlug string) (*Detail, error) {
	product, err := s.load(ctx, "slug = ?", productSlug)
	if err != nil {
		return nil, err
	}
	if product.Status != models.StatusPublished && !viewer.IsAdmin() {
		return nil, ErrNotFound
	}

	id := product.ID
	s.tasks.Go("products.view", func(ctx context.Context) error {
		return s.increment(ctx, id, "view_count")
	})

	var related []Related
	err = s.db.WithContext(ctx).Model(&models.Product{}).
		Select("id, name, slug, thumbnail_url, category").
		Where("category = ? AND status = ? AND id <> ?", product.Category, models.StatusPublished, product.ID).
		Order("view_count DESC").
		Limit(RelatedLimit).
		Scan(&related).Error
	if err != nil {
		s.logger.Warn("related products", zap.String("slug", productSlug), zap.Error(err))
		related = nil
	}
	if related == nil {
		related = []Related{}
	}

	return &Detail{Product: product, Related: related}, nil
}

// Update replaces every editable field of product id with form. This is a
// full replace, not a patch: optional fields absent from form are stored as
// null and the tag set becomes exactly the tags in form. The slug is kept.
func (s *Service) Update(ctx context.Context, actor *auth.Identity, id string, form validation.Form) (*models.Product, error) {
	if _, err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	var product models.Product
	if err := s.db.WithContext(ctx).Select("id", "slug").Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.persistenceError("load product", err)
	}

	in, err := validation.Validate(form)
	if err != nil {
		return nil, err
	}

	tagList, err := s.tags.Resolve(ctx, in.Tags)
	if err != nil {
		return nil, s.persistenceError("resolve tags", err)
	}

	apply(&product, in)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&product).Select(replaceColumns).Updates(&product).Error; err != nil {
			return err
		}
		association := tx.Model(&product).Association("Tags")
		if len(tagList) == 0 {
			return association.Clear()
		}
		return association.Replace(tagList)
	})
	if err != nil {
		return nil, s.persistenceError("update product", err)
	}

	updated, err := s.load(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}

	s.revalidate(revalidate.PathAdminProducts, revalidate.PathHome, revalidate.ProductPath(updated.Slug))
	return updated, nil
}

// Delete removes product id and its tag links; tags themselves stay. A
// thumbnail on the media host is removed in the background once the row is gone.
func (s *Service) Delete(ctx context.Context, actor *auth.Identity, id string) error {
	if _, err := auth.RequireAdmin(actor); err != nil {
		return err
	}

	var product models.Product
	err := s.db.WithContext(ctx).Select("id", "slug", "thumbnail_url").Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return s.persistenceError("load product", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&product).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
	if err != nil {
		return s.persistenceError("delete product", err)
	}

	s.destroyThumbnail(product.ThumbnailURL)
	s.revalidate(revalidate.PathAdminProducts, revalidate.PathHome, revalidate.ProductPath(product.Slug))
	return nil
}

// IncrementViewCount adds one view. It reports false instead of failing.
func (s *Service) IncrementViewCount(ctx context.Context, id string) bool {
	if err := s.increment(ctx, id, "view_count"); err != nil {
		s.logger.Warn("increment view count", zap.String("id", id), zap.Error(err))
		return false
	}
	return true
}

// IncrementClickCount adds one click-through. It reports false instead of failing.
func (s *Service) IncrementClickCount(ctx context.Context, id string) bool {
	if err := s.increment(ctx, id, "click_count"); err != nil {
		s.logger.Warn("increment click count", zap.String("id", id), zap.Error(err))
		return false
	}
	s.revalidate(revalidate.PathProducts)
	return true
}

// RecordClick schedules a click increment without waiting for it
func (s *Service) RecordClick(id string) {
	s.tasks.Go("products.click", func(ctx context.Context) error {
		if !s.IncrementClickCount(ctx, id) {
			return fmt.Errorf("click on %s not recorded", id)
		}
		return nil
	})
}

// increment is a single atomic UPDATE; it does not touch updated_at.
func (s *Service) increment(ctx context.Context, id, column string) error {
	res := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) destroyThumbnail(url *string) {
	if url == nil || !media.IsHosted(*url) {
		return
	}
	publicID, ok := media.PublicID(*url)
	if !ok {
		s.logger.Warn("hosted thumbnail without public id", zap.String("url", *url))
		return
	}
	if s.media == nil {
		s.logger.Warn("media host not configured, thumbnail kept", zap.String("public_id", publicID))
		return
	}
	s.tasks.Go("media.destroy", func(ctx context.Context) error {
		return s.media.Destroy(ctx, publicID)
	})
}

func (s *Service) revalidate(paths ...string) {
	if s.notifier == nil {
		return
	}
	s.tasks.Go("revalidate", func(ctx context.Context) error {
		return s.notifier.Notify(ctx, paths...)
	})
}

func (s *Service) slugExists(ctx context.Context, candidate string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", candidate).Count(&count).Error
	return count > 0, err
}

func (s *Service) withDetails(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") }).
		Preload("CreatedBy", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email") })
}

func (s *Service) load(ctx context.Context, query string, arg interface{}) (*models.Product, error) {
	var product models.Product
	if err := s.withDetails(s.db.WithContext(ctx)).Where(query, arg).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.persistenceError("load product", err)
	}
	return &product, nil
}

func (s *Service) persistenceError(op string, err error) error {
	s.logger.Error(op, zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

// apply copies validated input onto p, including nils for absent fields.
func apply(p *models.Product, in *validation.ProductInput) {
	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.ServiceURL = in.ServiceURL
	p.ThumbnailURL = in.ThumbnailURL
	p.DemoURL = in.DemoURL
	p.VideoURL = in.VideoURL
	p.PricingTier = in.PricingTier
	p.Price = in.Price
	p.TechStack = in.TechStack
	p.APIEndpoint = in.APIEndpoint
	p.MetaTitle = in.MetaTitle
	p.MetaDescription = in.MetaDescription
	p.Status = in.Status
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
