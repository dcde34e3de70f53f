package domain

import (
	"math"
	"time"
)

// ============================================================
// Cart: line items and the pricing reducer
// ============================================================

// CartOwner identifies whose cart a line belongs to. Exactly one of
// UserID or SessionID is set.
type CartOwner struct {
	UserID    string
	SessionID string
}

// IsZero reports whether the owner carries no identity at all.
func (o CartOwner) IsZero() bool {
	return o.UserID == "" && o.SessionID == ""
}

// CartItem is a persisted cart line. Product is embedded on reads.
type CartItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineKey is the identity two cart lines share when they should be merged.
type LineKey struct {
	ProductID string
	Size      string
	Color     string
}

// Key returns the merge key of the line.
func (i CartItem) Key() LineKey {
	return LineKey{ProductID: i.ProductID, Size: i.Size, Color: i.Color}
}

// CartLine is a priced cart line as returned to clients.
type CartLine struct {
	ID        string   `json:"id"`
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Image     string   `json:"image,omitempty"`
	Price     float64  `json:"price"`
	Quantity  int      `json:"quantity"`
	Size      string   `json:"size,omitempty"`
	Color     string   `json:"color,omitempty"`
	LineTotal float64  `json:"line_total"`
	Product   *Product `json:"product,omitempty"`
}

// Cart is the priced view of an owner's cart.
type Cart struct {
	Items       []CartLine `json:"items"`
	ItemCount   int        `json:"item_count"`
	Subtotal    float64    `json:"subtotal"`
	ShippingFee float64    `json:"shipping_fee"`
	Total       float64    `json:"total"`
	Currency    string     `json:"currency"`
}

// ShippingPolicy prices delivery for a subtotal.
type ShippingPolicy struct {
	Currency              string
	FlatFee               float64
	FreeShippingThreshold float64
}

// FeeFor returns the shipping fee for a subtotal. Empty carts ship free;
// a zero threshold disables free shipping.
func (p ShippingPolicy) FeeFor(subtotal float64) float64 {
	if subtotal <= 0 {
		return 0
	}
	if p.FreeShippingThreshold > 0 && subtotal >= p.FreeShippingThreshold {
		return 0
	}
	return p.FlatFee
}

// AddCartItemRequest is the body of POST /api/cart.
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
	Size      string `json:"size" validate:"max=20"`
	Color     string `json:"color" validate:"max=30"`
}

// UpdateCartItemRequest is the body of PUT /api/cart/{itemId}. A quantity
// of zero or less removes the line.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"max=99"`
}

// MergeLines folds lines sharing a (product, size, color) key into the
// first occurrence, summing quantities. Lines whose resulting quantity is
// zero or less are dropped. Input order is preserved.
func MergeLines(items []CartItem) []CartItem {
	index := make(map[LineKey]int, len(items))
	merged := make([]CartItem, 0, len(items))
	for _, it := range items {
		if i, ok := index[it.Key()]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.Key()] = len(merged)
		merged = append(merged, it)
	}

	out := merged[:0]
	for _, it := range merged {
		if it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out
}

// BuildCart merges and prices items. Lines without an embedded product
// (the product was deleted or deactivated) are skipped.
func BuildCart(items []CartItem, policy ShippingPolicy) *Cart {
	cart := &Cart{Items: []CartLine{}, Currency: policy.Currency}
	for _, it := range MergeLines(items) {
		if it.Product == nil {
			continue
		}
		line := CartLine{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Product.Name,
			Price:     it.Product.Price,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			LineTotal: RoundMoney(it.Product.Price * float64(it.Quantity)),
			Product:   it.Product,
		}
		if len(it.Product.Images) > 0 {
			line.Image = it.Product.Images[0]
		}
		cart.Items = append(cart.Items, line)
		cart.ItemCount += it.Quantity
		cart.Subtotal += line.LineTotal
	}
	cart.Subtotal = RoundMoney(cart.Subtotal)
	cart.ShippingFee = policy.FeeFor(cart.Subtotal)
	cart.Total = RoundMoney(cart.Subtotal + cart.ShippingFee)
	return cart
}

// RoundMoney rounds to two decimal places (kobo).
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
