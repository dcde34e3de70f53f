// Package memory is an in-process implementation of the store ports. It
// backs local runs without Supabase and the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"

	"github.com/google/uuid"
)

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
	products   map[string]domain.Product
	cart       map[string]domain.CartItem
	orders     map[string]domain.Order
	addresses  map[string]domain.Address
	profiles   map[string]domain.Profile
	now        func() time.Time
}

func New() *Store {
	return &Store{
		categories: map[string]domain.Category{},
		products:   map[string]domain.Product{},
		cart:       map[string]domain.CartItem{},
		orders:     map[string]domain.Order{},
		addresses:  map[string]domain.Address{},
		profiles:   map[string]domain.Profile{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// ============================================================
// Catalog
// ============================================================

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "category", ID: id}
	}
	return &c, nil
}

func (s *Store) GetCategoryBySlug(_ context.Context, slug string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "category", ID: slug}
}

func (s *Store) CreateCategory(_ context.Context, c *domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Slug == c.Slug {
			return nil, &domain.ErrConflict{Message: "category slug already exists: " + c.Slug}
		}
	}
	out := *c
	out.ID = uuid.NewString()
	out.CreatedAt = s.now()
	s.categories[out.ID] = out
	return &out, nil
}

func (s *Store) UpdateCategory(_ context.Context, id string, in *domain.CategoryInput) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "category", ID: id}
	}
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Slug != nil {
		c.Slug = *in.Slug
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.ImageURL != nil {
		c.ImageURL = *in.ImageURL
	}
	s.categories[id] = c
	return &c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return &domain.ErrNotFound{Resource: "category", ID: id}
	}
	delete(s.categories, id)
	for pid, p := range s.products {
		if p.CategoryID == id {
			p.CategoryID = ""
			s.products[pid] = p
		}
	}
	return nil
}

// withCategory embeds the product's category. Callers hold the lock.
func (s *Store) withCategory(p domain.Product) domain.Product {
	if c, ok := s.categories[p.CategoryID]; ok {
		p.Category = &c
	}
	return p
}

func (s *Store) ListProducts(_ context.Context, f domain.ProductFilter) (*domain.ProductPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(f.Search))
	var rows []domain.Product
	for _, p := range s.products {
		p = s.withCategory(p)
		switch {
		case !f.IncludeInactive && !p.IsActive:
			continue
		case f.CategoryID != "" && p.CategoryID != f.CategoryID:
			continue
		case f.CategorySlug != "" && (p.Category == nil || p.Category.Slug != f.CategorySlug):
			continue
		case f.Featured != nil && p.IsFeatured != *f.Featured:
			continue
		case f.MinPrice != nil && p.Price < *f.MinPrice:
			continue
		case f.MaxPrice != nil && p.Price > *f.MaxPrice:
			continue
		case f.InStockOnly && p.StockQuantity <= 0:
			continue
		case term != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Description), term):
			continue
		}
		rows = append(rows, p)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		switch f.Sort {
		case domain.SortPriceAsc:
			return rows[i].Price < rows[j].Price
		case domain.SortPriceDesc:
			return rows[i].Price > rows[j].Price
		case domain.SortName:
			return rows[i].Name < rows[j].Name
		default:
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
	})

	page := &domain.ProductPage{Products: []domain.Product{}, Page: f.Page, PageSize: f.PageSize, Total: len(rows)}
	start := (f.Page - 1) * f.PageSize
	if start < len(rows) {
		end := start + f.PageSize
		if end > len(rows) {
			end = len(rows)
		}
		page.Products = rows[start:end]
	}
	return page, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "product", ID: id}
	}
	p = s.withCategory(p)
	return &p, nil
}

func (s *Store) GetProductBySlug(_ context.Context, slug string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Slug == slug {
			p = s.withCategory(p)
			return &p, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "product", ID: slug}
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, p *domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if existing.Slug == p.Slug {
			return nil, &domain.ErrConflict{Message: "product slug already exists: " + p.Slug}
		}
	}
	out := *p
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.CreatedAt = s.now()
	out.UpdatedAt = out.CreatedAt
	s.products[out.ID] = out
	out = s.withCategory(out)
	return &out, nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, in *domain.ProductInput) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "product", ID: id}
	}
	applyProductInput(&p, in)
	p.UpdatedAt = s.now()
	s.products[id] = p
	p = s.withCategory(p)
	return &p, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return &domain.ErrNotFound{Resource: "product", ID: id}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return &domain.ErrNotFound{Resource: "product", ID: productID}
	}
	if p.StockQuantity+delta < 0 {
		return &domain.ErrInsufficientStock{ProductID: productID, Available: p.StockQuantity, Requested: -delta}
	}
	p.StockQuantity += delta
	p.UpdatedAt = s.now()
	s.products[productID] = p
	return nil
}

func (s *Store) CountProducts(_ context.Context, lowStockBelow int) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	low := 0
	for _, p := range s.products {
		if p.IsActive && p.StockQuantity < lowStockBelow {
			low++
		}
	}
	return len(s.products), low, nil
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
		p.Price = *in.Price
	}
	if in.OriginalPrice != nil {
		v := *in.OriginalPrice
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
