package supabase

import (
	"context"
	"net/url"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
)

// ============================================================
// Cart items: keyed by user_id or session_id
// ============================================================

const cartSelect = "*,product:products(*)"

// ownerFilter scopes q to the owner's rows.
func ownerFilter(q url.Values, owner domain.CartOwner) url.Values {
	if owner.UserID != "" {
		q.Set("user_id", eq(owner.UserID))
	} else {
		q.Set("session_id", eq(owner.SessionID))
		q.Set("user_id", "is.null")
	}
	return q
}

func (c *Client) ListCartItems(ctx context.Context, owner domain.CartOwner) ([]domain.CartItem, error) {
	body, err := c.get(ctx, "ListCartItems", "cart_items", ownerFilter(url.Values{
		"select": {cartSelect},
		"order":  {"created_at.asc"},
	}, owner))
	if err != nil {
		return nil, err
	}
	return decodeRows[domain.CartItem](body, "cart items")
}

func (c *Client) FindCartItem(ctx context.Context, owner domain.CartOwner, key domain.LineKey) (*domain.CartItem, error) {
	q := ownerFilter(url.Values{
		"select":     {cartSelect},
		"product_id": {eq(key.ProductID)},
		"limit":      {"1"},
	}, owner)
	q.Set("size", optionalEq(key.Size))
	q.Set("color", optionalEq(key.Color))

	body, err := c.get(ctx, "FindCartItem", "cart_items", q)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.CartItem](body, "cart item", key.ProductID)
}

func (c *Client) CreateCartItem(ctx context.Context, item *domain.CartItem) (*domain.CartItem, error) {
	body, err := c.insert(ctx, "CreateCartItem", "cart_items", map[string]any{
		"user_id":    nullIfEmpty(item.UserID),
		"session_id": nullIfEmpty(item.SessionID),
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
		"size":       nullIfEmpty(item.Size),
		"color":      nullIfEmpty(item.Color),
	}, url.Values{"select": {cartSelect}})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.CartItem](body, "cart item", item.ProductID)
}

func (c *Client) UpdateCartItemQuantity(ctx context.Context, owner domain.CartOwner, itemID string, quantity int) (*domain.CartItem, error) {
	q := ownerFilter(url.Values{
		"id":     {eq(itemID)},
		"select": {cartSelect},
	}, owner)
	body, err := c.patch(ctx, "UpdateCartItem", "cart_items", q, map[string]any{
		"quantity":   quantity,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.CartItem](body, "cart item", itemID)
}

func (c *Client) DeleteCartItem(ctx context.Context, owner domain.CartOwner, itemID string) error {
	body, err := c.remove(ctx, "DeleteCartItem", "cart_items", ownerFilter(url.Values{"id": {eq(itemID)}}, owner))
	if err != nil {
		return err
	}
	_, err = decodeOne[domain.CartItem](body, "cart item", itemID)
	return err
}

func (c *Client) ClearCart(ctx context.Context, owner domain.CartOwner) error {
	_, err := c.remove(ctx, "ClearCart", "cart_items", ownerFilter(url.Values{}, owner))
	return err
}

// optionalEq matches an empty variant as SQL NULL.
func optionalEq(v string) string {
	if v == "" {
		return "is.null"
	}
	return eq(v)
}
