package memory

import (
	"context"
	"sort"

	"github.com/naijastore/naijastore-api/internal/domain"

	"github.com/google/uuid"
)

// ============================================================
// Cart
// ============================================================

func owns(owner domain.CartOwner, it domain.CartItem) bool {
	if owner.UserID != "" {
		return it.UserID == owner.UserID
	}
	return it.UserID == "" && it.SessionID == owner.SessionID
}

// withProduct embeds the product, leaving it nil for deleted products.
// Callers hold the lock.
func (s *Store) withProduct(it domain.CartItem) domain.CartItem {
	if p, ok := s.products[it.ProductID]; ok {
		it.Product = &p
	}
	return it
}

func (s *Store) ListCartItems(_ context.Context, owner domain.CartOwner) ([]domain.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.CartItem{}
	for _, it := range s.cart {
		if owns(owner, it) {
			out = append(out, s.withProduct(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) FindCartItem(_ context.Context, owner domain.CartOwner, key domain.LineKey) (*domain.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.cart {
		if owns(owner, it) && it.Key() == key {
			it = s.withProduct(it)
			return &it, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "cart item", ID: key.ProductID}
}

func (s *Store) CreateCartItem(_ context.Context, item *domain.CartItem) (*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *item
	out.ID = uuid.NewString()
	out.Product = nil
	// Strictly increasing so listing order is stable.
	out.CreatedAt = s.now().Add(timeOffset(len(s.cart)))
	out.UpdatedAt = out.CreatedAt
	s.cart[out.ID] = out
	out = s.withProduct(out)
	return &out, nil
}

func (s *Store) UpdateCartItemQuantity(_ context.Context, owner domain.CartOwner, itemID string, quantity int) (*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.cart[itemID]
	if !ok || !owns(owner, it) {
		return nil, &domain.ErrNotFound{Resource: "cart item", ID: itemID}
	}
	it.Quantity = quantity
	it.UpdatedAt = s.now()
	s.cart[itemID] = it
	it = s.withProduct(it)
	return &it, nil
}

func (s *Store) DeleteCartItem(_ context.Context, owner domain.CartOwner, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.cart[itemID]
	if !ok || !owns(owner, it) {
		return &domain.ErrNotFound{Resource: "cart item", ID: itemID}
	}
	delete(s.cart, itemID)
	return nil
}

func (s *Store) ClearCart(_ context.Context, owner domain.CartOwner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, it := range s.cart {
		if owns(owner, it) {
			delete(s.cart, id)
		}
	}
	return nil
}

// ============================================================
// Orders
// ============================================================

func (s *Store) CreateOrder(_ context.Context, o *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.IdempotencyKey != "" {
		for _, existing := range s.orders {
			if existing.IdempotencyKey == o.IdempotencyKey {
				return nil, &domain.ErrConflict{Message: "duplicate idempotency key"}
			}
		}
	}
	out := *o
	out.ID = uuid.NewString()
	out.CreatedAt = s.now().Add(timeOffset(len(s.orders)))
	out.UpdatedAt = out.CreatedAt
	out.Items = make([]domain.OrderItem, len(o.Items))
	for i, it := range o.Items {
		it.ID = uuid.NewString()
		it.OrderID = out.ID
		out.Items[i] = it
	}
	s.orders[out.ID] = out
	return copyOrder(out), nil
}

func (s *Store) findOrder(match func(domain.Order) bool, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if match(o) {
			return copyOrder(o), nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "order", ID: id}
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	return s.findOrder(func(o domain.Order) bool { return o.ID == id }, id)
}

func (s *Store) GetOrderByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	return s.findOrder(func(o domain.Order) bool { return o.OrderNumber == orderNumber }, orderNumber)
}

func (s *Store) GetOrderByPaymentReference(_ context.Context, txRef string) (*domain.Order, error) {
	return s.findOrder(func(o domain.Order) bool { return o.PaymentReference != "" && o.PaymentReference == txRef }, txRef)
}

func (s *Store) FindOrderByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	return s.findOrder(func(o domain.Order) bool { return o.IdempotencyKey != "" && o.IdempotencyKey == key }, key)
}

func (s *Store) ListOrders(_ context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []domain.Order
	for _, o := range s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		rows = append(rows, *copyOrder(o))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })

	start := (f.Page - 1) * f.PageSize
	if start >= len(rows) {
		return []domain.Order{}, nil
	}
	end := start + f.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], nil
}

func (s *Store) UpdateOrder(_ context.Context, id string, u domain.OrderUpdate) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "order", ID: id}
	}
	return s.applyOrderUpdate(o, u), nil
}

func (s *Store) SettleOrder(_ context.Context, id string, u domain.OrderUpdate) (*domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, false, &domain.ErrNotFound{Resource: "order", ID: id}
	}
	if o.PaymentStatus == domain.PaymentStatusPaid || o.Status == domain.OrderStatusCancelled {
		return copyOrder(o), false, nil
	}
	return s.applyOrderUpdate(o, u), true, nil
}

// applyOrderUpdate must be called with s.mu held.
func (s *Store) applyOrderUpdate(o domain.Order, u domain.OrderUpdate) *domain.Order {
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}
	if u.PaymentReference != nil {
		o.PaymentReference = *u.PaymentReference
	}
	if u.TransactionID != nil {
		o.TransactionID = *u.TransactionID
	}
	if u.PaidAt != nil {
		t := *u.PaidAt
		o.PaidAt = &t
	}
	o.UpdatedAt = s.now()
	s.orders[o.ID] = o
	return copyOrder(o)
}

func (s *Store) OrderStats(ctx context.Context) (*domain.DashboardStats, error) {
	s.mu.RLock()
	stats := &domain.DashboardStats{TotalOrders: len(s.orders)}
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusPending {
			stats.PendingOrders++
		}
		if o.PaymentStatus == domain.PaymentStatusPaid {
			stats.PaidOrders++
			stats.Revenue += o.Total
		}
	}
	s.mu.RUnlock()
	stats.Revenue = domain.RoundMoney(stats.Revenue)

	recent, err := s.ListOrders(ctx, domain.OrderFilter{Page: 1, PageSize: 5})
	if err != nil {
		return nil, err
	}
	stats.RecentOrders = recent
	return stats, nil
}

func copyOrder(o domain.Order) *domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		o.ShippingAddress = &a
	}
	return &o
}
