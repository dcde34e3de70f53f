package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/events"
	"github.com/naijastore/naijastore-api/internal/infra/observability"
	"github.com/naijastore/naijastore-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService places and tracks orders. Prices always come from the
// catalog; client-sent prices are never read.
type OrderService struct {
	orders    port.OrderStore
	catalog   port.CatalogStore
	carts     port.CartStore
	addresses port.AddressStore
	events    port.EventPublisher
	policy    domain.ShippingPolicy
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrderService(
	orders port.OrderStore,
	catalog port.CatalogStore,
	carts port.CartStore,
	addresses port.AddressStore,
	publisher port.EventPublisher,
	policy domain.ShippingPolicy,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		catalog:   catalog,
		carts:     carts,
		addresses: addresses,
		events:    publisher,
		policy:    policy,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// orderEvent is the payload of order lifecycle events.
type orderEvent struct {
	OrderID        string  `json:"order_id"`
	OrderNumber    string  `json:"order_number"`
	Status         string  `json:"status"`
	PaymentStatus  string  `json:"payment_status"`
	PreviousStatus string  `json:"previous_status,omitempty"`
	Total          float64 `json:"total"`
	Currency       string  `json:"currency"`
	Email          string  `json:"email"`
	Reason         string  `json:"reason,omitempty"`
}

func newOrderEvent(o *domain.Order) orderEvent {
	return orderEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		Currency:      o.Currency,
		Email:         o.Email,
	}
}

// publish emits an event; failures are logged and never returned.
func publish(ctx context.Context, pub port.EventPublisher, logger *zap.Logger, eventType string, o *domain.Order, ev orderEvent) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, eventType, o.ID, ev); err != nil {
		logger.Warn("failed to publish event",
			zap.String("type", eventType),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// Create places an order. It returns the order and whether it was newly
// created; a repeated idempotency key returns the original order.
func (s *OrderService) Create(ctx context.Context, id domain.Identity, req *domain.CreateOrderRequest) (*domain.Order, bool, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Create")
	defer span.End()

	start := s.now()
	defer func() { s.metrics.RecordDuration("order_create", time.Since(start)) }()

	owner := id.Owner()
	if req.IdempotencyKey != "" {
		if existing, err := s.replay(ctx, owner, req.IdempotencyKey); existing != nil || err != nil {
			return existing, false, err
		}
	}

	address, err := s.shippingAddress(ctx, id, req)
	if err != nil {
		return nil, false, err
	}

	lines, err := s.requestedLines(ctx, owner, req)
	if err != nil {
		return nil, false, err
	}
	items, subtotal, err := s.priceLines(ctx, lines)
	if err != nil {
		return nil, false, err
	}

	fee := s.policy.FeeFor(subtotal)
	order := &domain.Order{
		OrderNumber:     domain.NewOrderNumber(s.now()),
		UserID:          owner.UserID,
		SessionID:       id.SessionID,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Subtotal:        subtotal,
		ShippingFee:     fee,
		Total:           domain.RoundMoney(subtotal + fee),
		Currency:        s.policy.Currency,
		ShippingAddress: address,
		Notes:           strings.TrimSpace(req.Notes),
		IdempotencyKey:  req.IdempotencyKey,
		Items:           items,
	}
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))

	created, err := s.orders.CreateOrder(ctx, order)
	var conflict *domain.ErrConflict
	if errors.As(err, &conflict) && req.IdempotencyKey != "" {
		// Lost a race with a concurrent request carrying the same key.
		if existing, rerr := s.replay(ctx, owner, req.IdempotencyKey); existing != nil || rerr != nil {
			return existing, false, rerr
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("create order: %w", err)
	}

	s.metrics.IncrOrderCreated()
	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.Float64("total", created.Total),
		zap.Int("lines", len(created.Items)),
	)
	publish(ctx, s.events, s.logger, events.OrderCreated, created, newOrderEvent(created))
	return created, true, nil
}

// replay returns the order previously created with key, or nil when the
// key is unused. A key belonging to another owner is a conflict.
func (s *OrderService) replay(ctx context.Context, owner domain.CartOwner, key string) (*domain.Order, error) {
	existing, err := s.orders.FindOrderByIdempotencyKey(ctx, key)
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.Owner() != owner {
		return nil, &domain.ErrConflict{Message: "idempotency key already used"}
	}
	return existing, nil
}

func (s *OrderService) shippingAddress(ctx context.Context, id domain.Identity, req *domain.CreateOrderRequest) (*domain.ShippingAddress, error) {
	if req.AddressID != "" {
		if !id.Authenticated() {
			return nil, &domain.ErrValidation{Field: "address_id", Message: "saved addresses require sign-in"}
		}
		a, err := s.addresses.GetAddress(ctx, id.UserID, req.AddressID)
		if err != nil {
			return nil, err
		}
		return a.Snapshot(), nil
	}
	if req.ShippingAddress == nil {
		return nil, &domain.ErrValidation{Field: "shipping_address", Message: "required"}
	}
	addr := *req.ShippingAddress
	if addr.Country == "" {
		addr.Country = "Nigeria"
	}
	return &addr, nil
}

// requestedLines returns the merged lines to order: the explicit items, or
// the owner's cart when none were sent.
func (s *OrderService) requestedLines(ctx context.Context, owner domain.CartOwner, req *domain.CreateOrderRequest) ([]domain.CartItem, error) {
	var lines []domain.CartItem
	if len(req.Items) > 0 {
		for _, it := range req.Items {
			lines = append(lines, domain.CartItem{ProductID: it.ProductID, Quantity: it.Quantity, Size: it.Size, Color: it.Color})
		}
	} else {
		if owner.IsZero() {
			return nil, &domain.ErrValidation{Field: "items", Message: "required without a cart"}
		}
		cart, err := s.carts.ListCartItems(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		// Lines of deleted products are not shown in the cart either.
		for _, it := range cart {
			if it.Product != nil {
				lines = append(lines, it)
			}
		}
	}
	lines = domain.MergeLines(lines)
	if len(lines) == 0 {
		return nil, &domain.ErrValidation{Field: "items", Message: "cart is empty"}
	}
	return lines, nil
}

// priceLines snapshots catalog prices onto order items and checks stock
// for the total quantity per product.
func (s *OrderService) priceLines(ctx context.Context, lines []domain.CartItem) ([]domain.OrderItem, float64, error) {
	ids := make([]string, 0, len(lines))
	wanted := map[string]int{}
	for _, l := range lines {
		if _, seen := wanted[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		wanted[l.ProductID] += l.Quantity
	}

	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, pid := range ids {
		p, ok := byID[pid]
		if !ok || !p.IsActive {
			return nil, 0, &domain.ErrNotFound{Resource: "product", ID: pid}
		}
		if !p.InStock(wanted[pid]) {
			return nil, 0, &domain.ErrInsufficientStock{ProductID: pid, Available: p.StockQuantity, Requested: wanted[pid]}
		}
	}

	items := make([]domain.OrderItem, 0, len(lines))
	var subtotal float64
	for _, l := range lines {
		p := byID[l.ProductID]
		if !domain.Offers(p.Sizes, l.Size) {
			return nil, 0, &domain.ErrValidation{Field: "size", Message: "not offered for " + p.Name}
		}
		if !domain.Offers(p.Colors, l.Color) {
			return nil, 0, &domain.ErrValidation{Field: "color", Message: "not offered for " + p.Name}
		}
		items = append(items, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Price:       p.Price,
			Quantity:    l.Quantity,
			Size:        l.Size,
			Color:       l.Color,
		})
		subtotal += domain.RoundMoney(p.Price * float64(l.Quantity))
	}
	return items, domain.RoundMoney(subtotal), nil
}

// ListMine lists the signed-in user's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, userID string, page, size int) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListMine")
	defer span.End()

	page, size = NormalizePage(page, size)
	return s.orders.ListOrders(ctx, domain.OrderFilter{UserID: userID, Page: page, PageSize: size})
}

// Get returns an order the identity placed. Orders of other owners are
// reported as not found.
func (s *OrderService) Get(ctx context.Context, id domain.Identity, orderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Get")
	defer span.End()

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.OwnedBy(id) {
		return nil, &domain.ErrNotFound{Resource: "order", ID: orderID}
	}
	return o, nil
}

// Track looks an order up by its number and the email it was placed with.
func (s *OrderService) Track(ctx context.Context, orderNumber, email string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Track")
	defer span.End()

	if strings.TrimSpace(email) == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "required"}
	}
	o, err := s.orders.GetOrderByNumber(ctx, strings.ToUpper(strings.TrimSpace(orderNumber)))
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(o.Email, strings.TrimSpace(email)) {
		return nil, &domain.ErrNotFound{Resource: "order", ID: orderNumber}
	}
	return o, nil
}

// AdminList lists every order with optional status filters.
func (s *OrderService) AdminList(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.AdminList")
	defer span.End()

	if f.Status != "" && !domain.ValidOrderStatus(f.Status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown order status"}
	}
	f.Page, f.PageSize = NormalizePage(f.Page, f.PageSize)
	return s.orders.ListOrders(ctx, f)
}

func (s *OrderService) AdminGet(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.AdminGet")
	defer span.End()

	return s.orders.GetOrder(ctx, orderID)
}

// UpdateStatus moves an order along the fulfilment workflow. Cancelling a
// paid order returns its units to stock.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.status", status))

	if !domain.ValidOrderStatus(status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown order status"}
	}
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return o, nil
	}
	if !domain.CanTransition(o.Status, status) {
		return nil, &domain.ErrConflict{Message: fmt.Sprintf("cannot move order from %s to %s", o.Status, status)}
	}

	updated, err := s.orders.UpdateOrder(ctx, orderID, domain.OrderUpdate{Status: &status})
	if err != nil {
		return nil, err
	}
	if status == domain.OrderStatusCancelled && o.PaymentStatus == domain.PaymentStatusPaid {
		restock(ctx, s.catalog, s.logger, o.Items, 1)
	}

	s.logger.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", o.Status),
		zap.String("to", status),
	)
	ev := newOrderEvent(updated)
	ev.PreviousStatus = o.Status
	publish(ctx, s.events, s.logger, events.OrderStatusChanged, updated, ev)
	return updated, nil
}

// restock applies sign*quantity to each item's product stock. Failures
// are logged; the order change has already been committed.
func restock(ctx context.Context, catalog port.CatalogStore, logger *zap.Logger, items []domain.OrderItem, sign int) {
	for _, it := range items {
		if err := catalog.AdjustStock(ctx, it.ProductID, sign*it.Quantity); err != nil {
			logger.Error("stock adjustment failed",
				zap.String("product_id", it.ProductID),
				zap.Int("delta", sign*it.Quantity),
				zap.Error(err),
			)
		}
	}
}
