// Package service provides the business logic layer (use cases) over the
// store, auth and payment ports.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/observability"
	"github.com/naijastore/naijastore-api/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// Pagination limits shared by listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage clamps page and size to valid values.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

const (
	keyCategories     = "categories"
	prefixCategory    = "category:"
	prefixProduct     = "product:"
	categoryPageLimit = 50
)

// CatalogService serves categories and products, caching hot reads.
type CatalogService struct {
	store   port.CatalogStore
	cache   port.Cache[any]
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewCatalogService(store port.CatalogStore, cache port.Cache[any], metrics *observability.Metrics, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: store, cache: cache, metrics: metrics, logger: logger}
}

func (s *CatalogService) cached(key string) (any, bool) {
	v, ok := s.cache.Get(key)
	if ok {
		s.metrics.IncrCacheHit("catalog")
	} else {
		s.metrics.IncrCacheMiss("catalog")
	}
	return v, ok
}

func (s *CatalogService) invalidate() {
	s.cache.Delete(keyCategories)
	s.cache.DeletePrefix(prefixCategory)
	s.cache.DeletePrefix(prefixProduct)
}

// ============================================================
// Categories
// ============================================================

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.ListCategories")
	defer span.End()

	if v, ok := s.cached(keyCategories); ok {
		if cats, ok := v.([]domain.Category); ok {
			return cats, nil
		}
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	s.cache.Set(keyCategories, cats)
	return cats, nil
}

// GetCategory returns the category for slug with its first page of
// active products.
func (s *CatalogService) GetCategory(ctx context.Context, slug string) (*domain.CategoryDetail, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.GetCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.slug", slug))

	key := prefixCategory + slug
	if v, ok := s.cached(key); ok {
		if d, ok := v.(*domain.CategoryDetail); ok {
			return d, nil
		}
	}

	cat, err := s.store.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	page, err := s.store.ListProducts(ctx, domain.ProductFilter{
		CategoryID: cat.ID,
		Page:       1,
		PageSize:   categoryPageLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list category products: %w", err)
	}
	d := &domain.CategoryDetail{Category: *cat, Products: page.Products, Total: page.Total}
	s.cache.Set(key, d)
	return d, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, in *domain.CategoryInput) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.CreateCategory")
	defer span.End()

	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	c := &domain.Category{Name: strings.TrimSpace(*in.Name)}
	slug, err := resolveSlug(in.Slug, c.Name)
	if err != nil {
		return nil, err
	}
	c.Slug = slug
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.ImageURL != nil {
		c.ImageURL = *in.ImageURL
	}

	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	s.logger.Info("category created", zap.String("id", created.ID), zap.String("slug", created.Slug))
	return created, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in *domain.CategoryInput) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.UpdateCategory")
	defer span.End()

	if in.Slug != nil && !domain.ValidSlug(*in.Slug) {
		return nil, &domain.ErrValidation{Field: "slug", Message: "must be lowercase kebab-case"}
	}
	c, err := s.store.UpdateCategory(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CatalogService.DeleteCategory")
	defer span.End()

	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("category deleted", zap.String("id", id))
	return nil
}

// ============================================================
// Products
// ============================================================

func (s *CatalogService) ListProducts(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.ListProducts")
	defer span.End()

	f.Page, f.PageSize = NormalizePage(f.Page, f.PageSize)
	switch f.Sort {
	case "", domain.SortNewest, domain.SortPriceAsc, domain.SortPriceDesc, domain.SortName:
	default:
		return nil, &domain.ErrValidation{Field: "sort", Message: "must be one of newest, price_asc, price_desc, name"}
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, &domain.ErrValidation{Field: "min_price", Message: "must not exceed max_price"}
	}

	page, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return page, nil
}

// GetProduct looks a product up by UUID or slug. Inactive products are
// hidden from the storefront.
func (s *CatalogService) GetProduct(ctx context.Context, idOrSlug string) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.key", idOrSlug))

	key := prefixProduct + idOrSlug
	if v, ok := s.cached(key); ok {
		if p, ok := v.(*domain.Product); ok {
			return p, nil
		}
	}

	var (
		p   *domain.Product
		err error
	)
	if _, perr := uuid.Parse(idOrSlug); perr == nil {
		p, err = s.store.GetProduct(ctx, idOrSlug)
	} else {
		p, err = s.store.GetProductBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, &domain.ErrNotFound{Resource: "product", ID: idOrSlug}
	}
	s.cache.Set(key, p)
	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in *domain.ProductInput) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if in.Price == nil || *in.Price <= 0 {
		return nil, &domain.ErrValidation{Field: "price", Message: "must be greater than 0"}
	}

	p := &domain.Product{IsActive: true}
	slug, err := resolveSlug(in.Slug, *in.Name)
	if err != nil {
		return nil, err
	}
	slugCopy := slug
	in.Slug = &slugCopy
	applyProductInput(p, in)
	p.Name = strings.TrimSpace(p.Name)

	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	s.logger.Info("product created", zap.String("id", created.ID), zap.String("slug", created.Slug))
	return created, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in *domain.ProductInput) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if in.Slug != nil && !domain.ValidSlug(*in.Slug) {
		return nil, &domain.ErrValidation{Field: "slug", Message: "must be lowercase kebab-case"}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	p, err := s.store.UpdateProduct(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("product deleted", zap.String("id", id))
	return nil
}

// resolveSlug validates an explicit slug or derives one from name.
func resolveSlug(explicit *string, name string) (string, error) {
	if explicit != nil && *explicit != "" {
		if !domain.ValidSlug(*explicit) {
			return "", &domain.ErrValidation{Field: "slug", Message: "must be lowercase kebab-case"}
		}
		return *explicit, nil
	}
	slug := domain.Slugify(name)
	if slug == "" {
		return "", &domain.ErrValidation{Field: "slug", Message: "cannot be derived from name"}
	}
	return slug, nil
}

func applyProductInput(p *domain.Product, in *domain.ProductInput) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Slug != nil {
		p.Slug = *in.Slug
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = domain.RoundMoney(*in.Price)
	}
	if in.OriginalPrice != nil {
		v := domain.RoundMoney(*in.OriginalPrice)
		p.OriginalPrice = &v
	}
	if in.CategoryID != nil {
		p.CategoryID = *in.CategoryID
	}
	if in.Images != nil {
		p.Images = *in.Images
	}
	if in.Sizes != nil {
		p.Sizes = *in.Sizes
	}
	if in.Colors != nil {
		p.Colors = *in.Colors
	}
	if in.StockQuantity != nil {
		p.StockQuantity = *in.StockQuantity
	}
	if in.IsFeatured != nil {
		p.IsFeatured = *in.IsFeatured
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}
