package supabase

import (
	"context"
	"net/url"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
)

// ============================================================
// Profiles: users
// ============================================================

func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	body, err := c.get(ctx, "GetProfile", "users", url.Values{
		"id":    {eq(userID)},
		"limit": {"1"},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Profile](body, "profile", userID)
}

// UpsertProfile creates the users row for a new account or merges into
// an existing one. The role column is never written from here.
func (c *Client) UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	row := map[string]any{
		"id":    p.ID,
		"email": p.Email,
	}
	if p.FullName != "" {
		row["full_name"] = p.FullName
	}
	if p.Phone != "" {
		row["phone"] = p.Phone
	}
	body, err := c.upsert(ctx, "UpsertProfile", "users", row, url.Values{"on_conflict": {"id"}})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Profile](body, "profile", p.ID)
}

func (c *Client) UpdateProfile(ctx context.Context, userID string, updates map[string]any) (*domain.Profile, error) {
	if len(updates) == 0 {
		return c.GetProfile(ctx, userID)
	}
	updates["updated_at"] = time.Now().UTC()
	body, err := c.patch(ctx, "UpdateProfile", "users", url.Values{"id": {eq(userID)}}, updates)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Profile](body, "profile", userID)
}
