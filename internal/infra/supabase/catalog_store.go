package supabase

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Catalog: categories and products via PostgREST
// ============================================================

const productSelect = "*,category:categories(*)"

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	body, err := c.get(ctx, "ListCategories", "categories", url.Values{
		"select": {"*"},
		"order":  {"name.asc"},
	})
	if err != nil {
		return nil, err
	}
	return decodeRows[domain.Category](body, "categories")
}

func (c *Client) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	body, err := c.get(ctx, "GetCategory", "categories", url.Values{
		"id":    {eq(id)},
		"limit": {"1"},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Category](body, "category", id)
}

func (c *Client) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	body, err := c.get(ctx, "GetCategoryBySlug", "categories", url.Values{
		"slug":  {eq(slug)},
		"limit": {"1"},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Category](body, "category", slug)
}

func (c *Client) CreateCategory(ctx context.Context, cat *domain.Category) (*domain.Category, error) {
	body, err := c.insert(ctx, "CreateCategory", "categories", map[string]any{
		"name":        cat.Name,
		"slug":        cat.Slug,
		"description": cat.Description,
		"image_url":   nullIfEmpty(cat.ImageURL),
	}, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Category](body, "category", cat.Slug)
}

func (c *Client) UpdateCategory(ctx context.Context, id string, in *domain.CategoryInput) (*domain.Category, error) {
	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Slug != nil {
		updates["slug"] = *in.Slug
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.ImageURL != nil {
		updates["image_url"] = nullIfEmpty(*in.ImageURL)
	}
	if len(updates) == 0 {
		return c.GetCategory(ctx, id)
	}

	body, err := c.patch(ctx, "UpdateCategory", "categories", url.Values{"id": {eq(id)}}, updates)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Category](body, "category", id)
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	body, err := c.remove(ctx, "DeleteCategory", "categories", url.Values{"id": {eq(id)}})
	if err != nil {
		return err
	}
	_, err = decodeOne[domain.Category](body, "category", id)
	return err
}

// ListProducts applies the filter as PostgREST query parameters and
// returns the page with the exact total.
func (c *Client) ListProducts(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error) {
	q := url.Values{"select": {productSelect}}

	if f.CategorySlug != "" {
		q.Set("select", "*,category:categories!inner(*)")
		q.Set("category.slug", eq(f.CategorySlug))
	}
	if f.CategoryID != "" {
		q.Set("category_id", eq(f.CategoryID))
	}
	if !f.IncludeInactive {
		q.Set("is_active", "eq.true")
	}
	if term := sanitizeSearch(f.Search); term != "" {
		q.Set("or", "(name.ilike.*"+term+"*,description.ilike.*"+term+"*)")
	}
	if f.Featured != nil {
		q.Set("is_featured", "eq."+strconv.FormatBool(*f.Featured))
	}
	if f.MinPrice != nil {
		q.Add("price", "gte."+strconv.FormatFloat(*f.MinPrice, 'f', 2, 64))
	}
	if f.MaxPrice != nil {
		q.Add("price", "lte."+strconv.FormatFloat(*f.MaxPrice, 'f', 2, 64))
	}
	if f.InStockOnly {
		q.Set("stock_quantity", "gt.0")
	}

	switch f.Sort {
	case domain.SortPriceAsc:
		q.Set("order", "price.asc")
	case domain.SortPriceDesc:
		q.Set("order", "price.desc")
	case domain.SortName:
		q.Set("order", "name.asc")
	default:
		q.Set("order", "created_at.desc")
	}

	q.Set("limit", strconv.Itoa(f.PageSize))
	q.Set("offset", strconv.Itoa((f.Page-1)*f.PageSize))

	body, total, err := c.getCounted(ctx, "ListProducts", "products", q)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[domain.Product](body, "products")
	if err != nil {
		return nil, err
	}
	if total < 0 {
		total = len(rows)
	}
	return &domain.ProductPage{Products: rows, Page: f.Page, PageSize: f.PageSize, Total: total}, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	body, err := c.get(ctx, "GetProduct", "products", url.Values{
		"select": {productSelect},
		"id":     {eq(id)},
		"limit":  {"1"},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Product](body, "product", id)
}

func (c *Client) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	body, err := c.get(ctx, "GetProductBySlug", "products", url.Values{
		"select": {productSelect},
		"slug":   {eq(slug)},
		"limit":  {"1"},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Product](body, "product", slug)
}

func (c *Client) GetProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	body, err := c.get(ctx, "GetProductsByIDs", "products", url.Values{
		"select": {"*"},
		"id":     {in(ids)},
	})
	if err != nil {
		return nil, err
	}
	return decodeRows[domain.Product](body, "products")
}

func (c *Client) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	body, err := c.insert(ctx, "CreateProduct", "products", productRow(p), url.Values{"select": {productSelect}})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Product](body, "product", p.Slug)
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in *domain.ProductInput) (*domain.Product, error) {
	updates := productUpdates(in)
	if len(updates) == 0 {
		return c.GetProduct(ctx, id)
	}
	updates["updated_at"] = time.Now().UTC()

	body, err := c.patch(ctx, "UpdateProduct", "products",
		url.Values{"id": {eq(id)}, "select": {productSelect}}, updates)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Product](body, "product", id)
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	body, err := c.remove(ctx, "DeleteProduct", "products", url.Values{"id": {eq(id)}})
	if err != nil {
		return err
	}
	_, err = decodeOne[domain.Product](body, "product", id)
	return err
}

// AdjustStock applies delta with an optimistic compare-and-set on the
// current stock, retrying a few times on concurrent writers.
func (c *Client) AdjustStock(ctx context.Context, productID string, delta int) error {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		p, err := c.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		next := p.StockQuantity + delta
		if next < 0 {
			return &domain.ErrInsufficientStock{ProductID: productID, Available: p.StockQuantity, Requested: -delta}
		}

		body, err := c.patch(ctx, "AdjustStock", "products", url.Values{
			"id":             {eq(productID)},
			"stock_quantity": {eq(strconv.Itoa(p.StockQuantity))},
		}, map[string]any{"stock_quantity": next, "updated_at": time.Now().UTC()})
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Product](body, "product")
		if err != nil {
			return err
		}
		if len(rows) == 1 {
			return nil
		}
		c.logger.Debug("supabase: stock changed concurrently, retrying",
			zap.String("product_id", productID),
			zap.Int("attempt", i+1),
		)
	}
	return &domain.ErrConflict{Message: "stock for product " + productID + " changed concurrently"}
}

func (c *Client) CountProducts(ctx context.Context, lowStockBelow int) (int, int, error) {
	total, err := c.count(ctx, "CountProducts", "products", nil)
	if err != nil {
		return 0, 0, err
	}
	low, err := c.count(ctx, "CountLowStock", "products", url.Values{
		"stock_quantity": {"lt." + strconv.Itoa(lowStockBelow)},
		"is_active":      {"eq.true"},
	})
	if err != nil {
		return 0, 0, err
	}
	return total, low, nil
}

func productRow(p *domain.Product) map[string]any {
	row := map[string]any{
		"name":           p.Name,
		"slug":           p.Slug,
		"description":    p.Description,
		"price":          p.Price,
		"original_price": p.OriginalPrice,
		"category_id":    nullIfEmpty(p.CategoryID),
		"images":         nonNil(p.Images),
		"sizes":          nonNil(p.Sizes),
		"colors":         nonNil(p.Colors),
		"stock_quantity": p.StockQuantity,
		"is_featured":    p.IsFeatured,
		"is_active":      p.IsActive,
	}
	return row
}

func productUpdates(in *domain.ProductInput) map[string]any {
	u := map[string]any{}
	if in.Name != nil {
		u["name"] = *in.Name
	}
	if in.Slug != nil {
		u["slug"] = *in.Slug
	}
	if in.Description != nil {
		u["description"] = *in.Description
	}
	if in.Price != nil {
		u["price"] = *in.Price
	}
	if in.OriginalPrice != nil {
		u["original_price"] = *in.OriginalPrice
	}
	if in.CategoryID != nil {
		u["category_id"] = nullIfEmpty(*in.CategoryID)
	}
	if in.Images != nil {
		u["images"] = nonNil(*in.Images)
	}
	if in.Sizes != nil {
		u["sizes"] = nonNil(*in.Sizes)
	}
	if in.Colors != nil {
		u["colors"] = nonNil(*in.Colors)
	}
	if in.StockQuantity != nil {
		u["stock_quantity"] = *in.StockQuantity
	}
	if in.IsFeatured != nil {
		u["is_featured"] = *in.IsFeatured
	}
	if in.IsActive != nil {
		u["is_active"] = *in.IsActive
	}
	return u
}

// sanitizeSearch strips characters that carry meaning inside a PostgREST
// or=(...) expression.
func sanitizeSearch(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '.', ':', '"', '\\':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
