package supabase

import (
	"context"
	"net/url"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Addresses: user_addresses
// ============================================================
//
// PostgREST has no multi-statement transactions, so the single-default
// rule is kept by clearing the other defaults first and then writing the
// row. The postgres package provides the transactional variant.

func (c *Client) ListAddresses(ctx context.Context, userID string) ([]domain.Address, error) {
	body, err := c.get(ctx, "ListAddresses", "user_addresses", url.Values{
		"user_id": {eq(userID)},
		"order":   {"is_default.desc,created_at.asc"},
	})
	if err != nil {
		return nil, err
	}
	return decodeRows[domain.Address](body, "addresses")
}

func (c *Client) GetAddress(ctx context.Context, userID, addressID string) (*domain.Address, error) {
	body, err := c.get(ctx, "GetAddress", "user_addresses", url.Values{
		"id":      {eq(addressID)},
		"user_id": {eq(userID)},
		"limit":   {"1"},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Address](body, "address", addressID)
}

func (c *Client) CreateAddress(ctx context.Context, a *domain.Address) (*domain.Address, error) {
	if !a.IsDefault {
		n, err := c.count(ctx, "CountAddresses", "user_addresses", url.Values{"user_id": {eq(a.UserID)}})
		if err != nil {
			return nil, err
		}
		a.IsDefault = n == 0
	}
	if a.IsDefault {
		if err := c.clearDefaults(ctx, a.UserID, ""); err != nil {
			return nil, err
		}
	}

	body, err := c.insert(ctx, "CreateAddress", "user_addresses", addressRow(a), nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Address](body, "address", a.UserID)
}

func (c *Client) UpdateAddress(ctx context.Context, a *domain.Address) (*domain.Address, error) {
	if a.IsDefault {
		if err := c.clearDefaults(ctx, a.UserID, a.ID); err != nil {
			return nil, err
		}
	}
	row := addressRow(a)
	row["updated_at"] = time.Now().UTC()

	body, err := c.patch(ctx, "UpdateAddress", "user_addresses", url.Values{
		"id":      {eq(a.ID)},
		"user_id": {eq(a.UserID)},
	}, row)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Address](body, "address", a.ID)
}

// DeleteAddress removes the address. When it was the default, the oldest
// remaining address is promoted.
func (c *Client) DeleteAddress(ctx context.Context, userID, addressID string) error {
	body, err := c.remove(ctx, "DeleteAddress", "user_addresses", url.Values{
		"id":      {eq(addressID)},
		"user_id": {eq(userID)},
	})
	if err != nil {
		return err
	}
	deleted, err := decodeOne[domain.Address](body, "address", addressID)
	if err != nil {
		return err
	}
	if !deleted.IsDefault {
		return nil
	}

	remaining, err := c.ListAddresses(ctx, userID)
	if err != nil || len(remaining) == 0 {
		return err
	}
	if _, err := c.SetDefaultAddress(ctx, userID, remaining[0].ID); err != nil {
		c.logger.Warn("supabase: failed to promote default address",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return nil
}

func (c *Client) SetDefaultAddress(ctx context.Context, userID, addressID string) (*domain.Address, error) {
	if _, err := c.GetAddress(ctx, userID, addressID); err != nil {
		return nil, err
	}
	if err := c.clearDefaults(ctx, userID, addressID); err != nil {
		return nil, err
	}
	body, err := c.patch(ctx, "SetDefaultAddress", "user_addresses", url.Values{
		"id":      {eq(addressID)},
		"user_id": {eq(userID)},
	}, map[string]any{"is_default": true, "updated_at": time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Address](body, "address", addressID)
}

// clearDefaults unsets is_default on the user's addresses except keepID.
func (c *Client) clearDefaults(ctx context.Context, userID, keepID string) error {
	q := url.Values{
		"user_id":    {eq(userID)},
		"is_default": {"eq.true"},
	}
	if keepID != "" {
		q.Set("id", "neq."+keepID)
	}
	_, err := c.patch(ctx, "ClearDefaultAddresses", "user_addresses", q, map[string]any{"is_default": false})
	return err
}

func addressRow(a *domain.Address) map[string]any {
	return map[string]any{
		"user_id":       a.UserID,
		"full_name":     a.FullName,
		"phone":         a.Phone,
		"address_line1": a.AddressLine1,
		"address_line2": nullIfEmpty(a.AddressLine2),
		"city":          a.City,
		"state":         a.State,
		"postal_code":   nullIfEmpty(a.PostalCode),
		"country":       a.Country,
		"is_default":    a.IsDefault,
	}
}
