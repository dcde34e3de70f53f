package domain

import (
	"regexp"
	"strings"
	"time"
)

// ============================================================
// Catalog: categories and products
// ============================================================

// Category groups products on the storefront.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product is a sellable catalog item.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description,omitempty"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"original_price,omitempty"`
	CategoryID    string    `json:"category_id,omitempty"`
	Category      *Category `json:"category,omitempty"`
	Images        []string  `json:"images"`
	Sizes         []string  `json:"sizes"`
	Colors        []string  `json:"colors"`
	StockQuantity int       `json:"stock_quantity"`
	IsFeatured    bool      `json:"is_featured"`
	IsActive      bool      `json:"is_active"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"review_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InStock reports whether the product can cover qty units.
func (p *Product) InStock(qty int) bool {
	return p.StockQuantity >= qty
}

// Offers reports whether v is one of the product's options. Products that
// list no options accept any value, and an empty v always passes.
func Offers(options []string, v string) bool {
	if v == "" || len(options) == 0 {
		return true
	}
	for _, o := range options {
		if strings.EqualFold(o, v) {
			return true
		}
	}
	return false
}

// CategoryDetail is a category together with its active products.
type CategoryDetail struct {
	Category
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

// Product sort orders accepted by ProductFilter.Sort.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

// ProductFilter narrows a product listing.
type ProductFilter struct {
	CategoryID   string
	CategorySlug string
	Search       string
	Featured     *bool
	MinPrice     *float64
	MaxPrice     *float64
	InStockOnly  bool
	// IncludeInactive is only honoured for admin listings.
	IncludeInactive bool
	Sort            string
	Page            int
	PageSize        int
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Total    int       `json:"total"`
}

// ProductInput carries admin create/update fields. Pointer fields are
// optional on update; nil means "leave unchanged".
type ProductInput struct {
	Name          *string   `json:"name" validate:"omitempty,min=2,max=200"`
	Slug          *string   `json:"slug" validate:"omitempty,slug"`
	Description   *string   `json:"description" validate:"omitempty,max=5000"`
	Price         *float64  `json:"price" validate:"omitempty,gt=0"`
	OriginalPrice *float64  `json:"original_price" validate:"omitempty,gt=0"`
	CategoryID    *string   `json:"category_id" validate:"omitempty,uuid"`
	Images        *[]string `json:"images" validate:"omitempty,dive,url"`
	Sizes         *[]string `json:"sizes"`
	Colors        *[]string `json:"colors"`
	StockQuantity *int      `json:"stock_quantity" validate:"omitempty,gte=0"`
	IsFeatured    *bool     `json:"is_featured"`
	IsActive      *bool     `json:"is_active"`
}

// CategoryInput carries admin create/update fields.
type CategoryInput struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,slug"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

var (
	slugStrip  = regexp.MustCompile(`[^a-z0-9]+`)
	slugFormat = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify turns a display name into a lowercase kebab-case slug.
func Slugify(name string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// ValidSlug reports whether s is lowercase kebab-case.
func ValidSlug(s string) bool {
	return slugFormat.MatchString(s)
}
