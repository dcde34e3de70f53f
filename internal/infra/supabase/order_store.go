package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Orders: orders + order_items
// ============================================================

const orderSelect = "*,items:order_items(*)"

// CreateOrder inserts the order row and then its items. PostgREST cannot
// span both in one transaction, so a failed item insert deletes the order
// row again before returning the error.
func (c *Client) CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	body, err := c.insert(ctx, "CreateOrder", "orders", orderRow(o), nil)
	if err != nil {
		return nil, err
	}
	created, err := decodeOne[domain.Order](body, "order", o.OrderNumber)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		rows = append(rows, map[string]any{
			"order_id":     created.ID,
			"product_id":   it.ProductID,
			"product_name": it.ProductName,
			"price":        it.Price,
			"quantity":     it.Quantity,
			"size":         nullIfEmpty(it.Size),
			"color":        nullIfEmpty(it.Color),
		})
	}

	itemsBody, err := c.insert(ctx, "CreateOrderItems", "order_items", rows, nil)
	if err != nil {
		if _, delErr := c.remove(ctx, "DeleteOrphanOrder", "orders", url.Values{"id": {eq(created.ID)}}); delErr != nil {
			c.logger.Error("supabase: failed to roll back order after item insert failure",
				zap.String("order_id", created.ID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("insert order items: %w", err)
	}
	items, err := decodeRows[domain.OrderItem](itemsBody, "order items")
	if err != nil {
		return nil, err
	}
	created.Items = items
	return created, nil
}

func (c *Client) getOrderBy(ctx context.Context, op, column, value string) (*domain.Order, error) {
	body, err := c.get(ctx, op, "orders", url.Values{
		"select": {orderSelect},
		column:   {eq(value)},
		"limit":  {"1"},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Order](body, "order", value)
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return c.getOrderBy(ctx, "GetOrder", "id", id)
}

func (c *Client) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return c.getOrderBy(ctx, "GetOrderByNumber", "order_number", orderNumber)
}

func (c *Client) GetOrderByPaymentReference(ctx context.Context, txRef string) (*domain.Order, error) {
	return c.getOrderBy(ctx, "GetOrderByPaymentReference", "payment_reference", txRef)
}

func (c *Client) FindOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return c.getOrderBy(ctx, "FindOrderByIdempotencyKey", "idempotency_key", key)
}

func (c *Client) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	q := url.Values{
		"select": {orderSelect},
		"order":  {"created_at.desc"},
		"limit":  {strconv.Itoa(f.PageSize)},
		"offset": {strconv.Itoa((f.Page - 1) * f.PageSize)},
	}
	if f.UserID != "" {
		q.Set("user_id", eq(f.UserID))
	}
	if f.Status != "" {
		q.Set("status", eq(f.Status))
	}
	if f.PaymentStatus != "" {
		q.Set("payment_status", eq(f.PaymentStatus))
	}

	body, err := c.get(ctx, "ListOrders", "orders", q)
	if err != nil {
		return nil, err
	}
	return decodeRows[domain.Order](body, "orders")
}

func (c *Client) UpdateOrder(ctx context.Context, id string, u domain.OrderUpdate) (*domain.Order, error) {
	body, err := c.patch(ctx, "UpdateOrder", "orders", url.Values{
		"id":     {eq(id)},
		"select": {orderSelect},
	}, orderUpdates(u))
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Order](body, "order", id)
}

// SettleOrder filters the PATCH on the payment and order status, so
// PostgREST only touches a row that is still open. An empty
// representation means another caller settled it first.
func (c *Client) SettleOrder(ctx context.Context, id string, u domain.OrderUpdate) (*domain.Order, bool, error) {
	body, err := c.patch(ctx, "SettleOrder", "orders", url.Values{
		"id":             {eq(id)},
		"payment_status": {"neq." + domain.PaymentStatusPaid},
		"status":         {"neq." + domain.OrderStatusCancelled},
		"select":         {orderSelect},
	}, orderUpdates(u))
	if err != nil {
		return nil, false, err
	}
	rows, err := decodeRows[domain.Order](body, "order")
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		current, err := c.GetOrder(ctx, id)
		return current, false, err
	}
	return &rows[0], true, nil
}

func orderUpdates(u domain.OrderUpdate) map[string]any {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.PaymentStatus != nil {
		updates["payment_status"] = *u.PaymentStatus
	}
	if u.PaymentReference != nil {
		updates["payment_reference"] = *u.PaymentReference
	}
	if u.TransactionID != nil {
		updates["transaction_id"] = *u.TransactionID
	}
	if u.PaidAt != nil {
		updates["paid_at"] = u.PaidAt.UTC()
	}
	return updates
}

// OrderStats fills the order-derived part of the dashboard.
func (c *Client) OrderStats(ctx context.Context) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{}
	var err error

	if stats.TotalOrders, err = c.count(ctx, "CountOrders", "orders", nil); err != nil {
		return nil, err
	}
	if stats.PendingOrders, err = c.count(ctx, "CountPendingOrders", "orders", url.Values{
		"status": {eq(domain.OrderStatusPending)},
	}); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, "PaidOrderTotals", "orders", url.Values{
		"select":         {"total"},
		"payment_status": {eq(domain.PaymentStatusPaid)},
	})
	if err != nil {
		return nil, err
	}
	var totals []struct {
		Total float64 `json:"total"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &totals); err != nil {
			return nil, fmt.Errorf("decode order totals: %w", err)
		}
	}
	for _, t := range totals {
		stats.Revenue += t.Total
	}
	stats.Revenue = domain.RoundMoney(stats.Revenue)
	stats.PaidOrders = len(totals)

	recent, err := c.ListOrders(ctx, domain.OrderFilter{Page: 1, PageSize: 5})
	if err != nil {
		return nil, err
	}
	stats.RecentOrders = recent
	return stats, nil
}

func orderRow(o *domain.Order) map[string]any {
	return map[string]any{
		"order_number":     o.OrderNumber,
		"user_id":          nullIfEmpty(o.UserID),
		"session_id":       nullIfEmpty(o.SessionID),
		"email":            o.Email,
		"status":           o.Status,
		"payment_status":   o.PaymentStatus,
		"subtotal":         o.Subtotal,
		"shipping_fee":     o.ShippingFee,
		"total":            o.Total,
		"currency":         o.Currency,
		"shipping_address": o.ShippingAddress,
		"notes":            o.Notes,
		"idempotency_key":  nullIfEmpty(o.IdempotencyKey),
	}
}
