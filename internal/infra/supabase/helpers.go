package supabase

import (
	"context"
	"net/http"
	"net/url"
)

// ============================================================
// HTTP helpers for GET, POST, PATCH, DELETE
// ============================================================

func (c *Client) get(ctx context.Context, op, table string, q url.Values) ([]byte, error) {
	resp, err := c.execute(ctx, op, call{method: http.MethodGet, path: rest(table, q)})
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// getCounted issues a GET with an exact count; the total comes back in
// Content-Range.
func (c *Client) getCounted(ctx context.Context, op, table string, q url.Values) ([]byte, int, error) {
	resp, err := c.execute(ctx, op, call{method: http.MethodGet, path: rest(table, q), prefer: "count=exact"})
	if err != nil {
		return nil, 0, err
	}
	return resp.body, contentRangeTotal(resp.header), nil
}

// count returns only the exact row count matching q.
func (c *Client) count(ctx context.Context, op, table string, q url.Values) (int, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("select", "id")
	q.Set("limit", "1")
	_, total, err := c.getCounted(ctx, op, table, q)
	if err != nil {
		return 0, err
	}
	if total < 0 {
		total = 0
	}
	return total, nil
}

func (c *Client) insert(ctx context.Context, op, table string, data any, q url.Values) ([]byte, error) {
	resp, err := c.execute(ctx, op, call{
		method: http.MethodPost,
		path:   rest(table, q),
		body:   data,
		prefer: "return=representation",
	})
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

func (c *Client) upsert(ctx context.Context, op, table string, data any, q url.Values) ([]byte, error) {
	resp, err := c.execute(ctx, op, call{
		method: http.MethodPost,
		path:   rest(table, q),
		body:   data,
		prefer: "return=representation,resolution=merge-duplicates",
	})
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

func (c *Client) patch(ctx context.Context, op, table string, q url.Values, data any) ([]byte, error) {
	resp, err := c.execute(ctx, op, call{
		method: http.MethodPatch,
		path:   rest(table, q),
		body:   data,
		prefer: "return=representation",
	})
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

func (c *Client) remove(ctx context.Context, op, table string, q url.Values) ([]byte, error) {
	resp, err := c.execute(ctx, op, call{
		method: http.MethodDelete,
		path:   rest(table, q),
		prefer: "return=representation",
	})
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}
