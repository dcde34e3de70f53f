package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/naijastore/naijastore-api/internal/domain"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id::text, order_number, COALESCE(user_id::text, ''), COALESCE(session_id, ''),
	email, status, payment_status, COALESCE(payment_reference, ''), COALESCE(transaction_id, ''),
	subtotal::float8, shipping_fee::float8, total::float8, currency,
	shipping_address, COALESCE(notes, ''), COALESCE(idempotency_key, ''),
	paid_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o       domain.Order
		address []byte
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.SessionID,
		&o.Email, &o.Status, &o.PaymentStatus, &o.PaymentReference, &o.TransactionID,
		&o.Subtotal, &o.ShippingFee, &o.Total, &o.Currency,
		&address, &o.Notes, &o.IdempotencyKey,
		&o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(address) > 0 && string(address) != "null" {
		o.ShippingAddress = &domain.ShippingAddress{}
		if err := json.Unmarshal(address, o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	return &o, nil
}

// CreateOrder inserts the order and its items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, in *domain.Order) (*domain.Order, error) {
	address, err := json.Marshal(in.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}

	var out *domain.Order
	err = s.withTx(ctx, "CreateOrder", func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, `INSERT INTO orders
			(order_number, user_id, session_id, email, status, payment_status,
			 subtotal, shipping_fee, total, currency, shipping_address, notes, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING `+orderColumns,
			in.OrderNumber, nullIfEmpty(in.UserID), nullIfEmpty(in.SessionID), in.Email,
			in.Status, in.PaymentStatus, in.Subtotal, in.ShippingFee, in.Total, in.Currency,
			address, nullIfEmpty(in.Notes), nullIfEmpty(in.IdempotencyKey)))
		if err != nil {
			return mapError("CreateOrder", in.OrderNumber, err)
		}

		for _, it := range in.Items {
			item := it
			item.OrderID = o.ID
			if err := tx.QueryRow(ctx, `INSERT INTO order_items
				(order_id, product_id, product_name, price, quantity, size, color)
				VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id::text`,
				o.ID, it.ProductID, it.ProductName, it.Price, it.Quantity,
				nullIfEmpty(it.Size), nullIfEmpty(it.Color)).Scan(&item.ID); err != nil {
				return mapError("CreateOrder", in.OrderNumber, err)
			}
			o.Items = append(o.Items, item)
		}
		out = o
		return nil
	})
	return out, err
}

func (s *Store) getOrderBy(ctx context.Context, op, column, value string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1 LIMIT 1`, value))
	if err != nil {
		return nil, mapError(op, value, err)
	}
	if err := s.loadItems(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrderBy(ctx, "GetOrder", "id", id)
}

func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.getOrderBy(ctx, "GetOrderByNumber", "order_number", orderNumber)
}

func (s *Store) GetOrderByPaymentReference(ctx context.Context, txRef string) (*domain.Order, error) {
	return s.getOrderBy(ctx, "GetOrderByPaymentReference", "payment_reference", txRef)
}

func (s *Store) FindOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return s.getOrderBy(ctx, "FindOrderByIdempotencyKey", "idempotency_key", key)
}

func (s *Store) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR user_id::text = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR payment_status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		f.UserID, f.Status, f.PaymentStatus, f.PageSize, (f.Page-1)*f.PageSize)
	if err != nil {
		return nil, mapError("ListOrders", "", err)
	}
	defer rows.Close()

	var ptrs []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, mapError("ListOrders", "", err)
		}
		ptrs = append(ptrs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("ListOrders", "", err)
	}
	if err := s.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(ptrs))
	for _, o := range ptrs {
		out = append(out, *o)
	}
	return out, nil
}

// loadItems attaches order_items to orders with a single query.
func (s *Store) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := s.db.Query(ctx, `SELECT id::text, order_id::text, product_id::text, product_name,
		price::float8, quantity, COALESCE(size, ''), COALESCE(color, '')
		FROM order_items WHERE order_id::text = ANY($1) ORDER BY order_id, id`, ids)
	if err != nil {
		return mapError("LoadOrderItems", "", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Price, &it.Quantity, &it.Size, &it.Color); err != nil {
			return mapError("LoadOrderItems", "", err)
		}
		if o := byID[it.OrderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return mapError("LoadOrderItems", "", rows.Err())
}

const updateOrderSQL = `UPDATE orders SET
		status            = COALESCE($2, status),
		payment_status    = COALESCE($3, payment_status),
		payment_reference = COALESCE($4, payment_reference),
		transaction_id    = COALESCE($5, transaction_id),
		paid_at           = COALESCE($6, paid_at),
		updated_at        = now()
		WHERE id = $1`

func (s *Store) UpdateOrder(ctx context.Context, id string, u domain.OrderUpdate) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, updateOrderSQL+`
		RETURNING `+orderColumns,
		id, u.Status, u.PaymentStatus, u.PaymentReference, u.TransactionID, u.PaidAt))
	if err != nil {
		return nil, mapError("UpdateOrder", id, err)
	}
	if err := s.loadItems(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// SettleOrder guards the update on the row itself. Losing the race shows
// up as no row returned, and the stored order is read back.
func (s *Store) SettleOrder(ctx context.Context, id string, u domain.OrderUpdate) (*domain.Order, bool, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, updateOrderSQL+`
		AND payment_status <> $7 AND status <> $8
		RETURNING `+orderColumns,
		id, u.Status, u.PaymentStatus, u.PaymentReference, u.TransactionID, u.PaidAt,
		domain.PaymentStatusPaid, domain.OrderStatusCancelled))
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := s.GetOrder(ctx, id)
		return current, false, err
	}
	if err != nil {
		return nil, false, mapError("SettleOrder", id, err)
	}
	if err := s.loadItems(ctx, []*domain.Order{o}); err != nil {
		return nil, false, err
	}
	return o, true, nil
}

func (s *Store) OrderStats(ctx context.Context) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{}
	err := s.db.QueryRow(ctx, `SELECT
		count(*),
		count(*) FILTER (WHERE status = $1),
		count(*) FILTER (WHERE payment_status = $2),
		COALESCE(sum(total) FILTER (WHERE payment_status = $2), 0)::float8
		FROM orders`, domain.OrderStatusPending, domain.PaymentStatusPaid).
		Scan(&stats.TotalOrders, &stats.PendingOrders, &stats.PaidOrders, &stats.Revenue)
	if err != nil {
		return nil, mapError("OrderStats", "", err)
	}
	stats.Revenue = domain.RoundMoney(stats.Revenue)

	recent, err := s.ListOrders(ctx, domain.OrderFilter{Page: 1, PageSize: 5})
	if err != nil {
		return nil, err
	}
	stats.RecentOrders = recent
	return stats, nil
}
