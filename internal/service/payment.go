package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/events"
	"github.com/naijastore/naijastore-api/internal/infra/observability"
	"github.com/naijastore/naijastore-api/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentSettings brands and routes the hosted checkout.
type PaymentSettings struct {
	RedirectURL string
	StoreName   string
	LogoURL     string
}

// PaymentService runs checkout through the payment gateway and settles
// orders from verified transactions.
type PaymentService struct {
	orders   port.OrderStore
	carts    port.CartStore
	catalog  port.CatalogStore
	gateway  port.PaymentGateway
	events   port.EventPublisher
	settings PaymentSettings
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewPaymentService(
	orders port.OrderStore,
	carts port.CartStore,
	catalog port.CatalogStore,
	gateway port.PaymentGateway,
	publisher port.EventPublisher,
	settings PaymentSettings,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PaymentService {
	if settings.StoreName == "" {
		settings.StoreName = "NaijaStore"
	}
	return &PaymentService{
		orders:   orders,
		carts:    carts,
		catalog:  catalog,
		gateway:  gateway,
		events:   publisher,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Initialize mints a hosted checkout link for an unpaid order. Every
// attempt gets a fresh tx_ref prefixed with the order number.
func (s *PaymentService) Initialize(ctx context.Context, id domain.Identity, orderID string) (*domain.InitializePaymentResponse, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.Initialize")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.OwnedBy(id) {
		return nil, &domain.ErrNotFound{Resource: "order", ID: orderID}
	}
	switch {
	case o.PaymentStatus == domain.PaymentStatusPaid:
		return nil, &domain.ErrConflict{Message: "order is already paid"}
	case o.Status == domain.OrderStatusCancelled:
		return nil, &domain.ErrConflict{Message: "order is cancelled"}
	}

	txRef := o.OrderNumber + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	req := &domain.PaymentInitRequest{
		TxRef:       txRef,
		Amount:      o.Total,
		Currency:    o.Currency,
		RedirectURL: s.settings.RedirectURL,
		Customer:    domain.PaymentCustomer{Email: o.Email},
		Customizations: domain.PaymentCustomizations{
			Title:       s.settings.StoreName,
			Description: "Payment for order " + o.OrderNumber,
			Logo:        s.settings.LogoURL,
		},
		Meta: map[string]string{"order_id": o.ID, "order_number": o.OrderNumber},
	}
	if o.ShippingAddress != nil {
		req.Customer.Name = o.ShippingAddress.FullName
		req.Customer.PhoneNumber = o.ShippingAddress.Phone
	}

	link, err := s.gateway.InitializePayment(ctx, req)
	if err != nil {
		s.metrics.IncrExternalError("flutterwave")
		return nil, err
	}
	if _, err := s.orders.UpdateOrder(ctx, o.ID, domain.OrderUpdate{PaymentReference: &txRef}); err != nil {
		return nil, err
	}

	s.logger.Info("payment initialized",
		zap.String("order_id", o.ID),
		zap.String("tx_ref", txRef),
		zap.Float64("amount", o.Total),
	)
	return &domain.InitializePaymentResponse{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		TxRef:       txRef,
		Amount:      o.Total,
		Currency:    o.Currency,
		Link:        link.Link,
	}, nil
}

// Verify asks the gateway about a transaction and settles its order.
func (s *PaymentService) Verify(ctx context.Context, req *domain.VerifyPaymentRequest) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.Verify")
	defer span.End()

	var (
		tx  *domain.GatewayTransaction
		err error
	)
	if req.TransactionID != "" {
		tx, err = s.gateway.VerifyTransaction(ctx, req.TransactionID)
	} else {
		tx, err = s.gateway.VerifyByReference(ctx, req.TxRef)
	}
	if err != nil {
		return nil, err
	}
	if req.TxRef != "" && tx.TxRef != req.TxRef {
		return nil, &domain.ErrPaymentRejected{Reference: req.TxRef, Reason: "transaction reference mismatch"}
	}
	o, err := s.orderForReference(ctx, tx.TxRef)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, o, tx)
}

// HandleWebhook authenticates a gateway webhook and settles the order it
// refers to. The payload is only a hint: the transaction is re-verified
// with the gateway before anything changes. Rejected payments are logged
// and acknowledged.
func (s *PaymentService) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	ctx, span := tracer.Start(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	if !s.gateway.ValidWebhookSignature(signature) {
		return &domain.ErrUnauthorized{Message: "invalid webhook signature"}
	}
	var ev domain.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "invalid webhook payload"}
	}
	span.SetAttributes(attribute.String("webhook.event", ev.Event))
	if ev.Event != "charge.completed" || ev.Data.ID == 0 {
		s.logger.Debug("ignoring webhook event", zap.String("event", ev.Event))
		return nil
	}

	tx, err := s.gateway.VerifyTransaction(ctx, strconv.FormatInt(ev.Data.ID, 10))
	if err != nil {
		return err
	}
	o, err := s.orderForReference(ctx, tx.TxRef)
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		s.logger.Warn("webhook for unknown order", zap.String("tx_ref", tx.TxRef))
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.settle(ctx, o, tx)
	var rejected *domain.ErrPaymentRejected
	if errors.As(err, &rejected) {
		return nil
	}
	return err
}

// orderForReference finds the order a tx_ref belongs to: by the stored
// payment reference, or by the order number prefix of older attempts.
func (s *PaymentService) orderForReference(ctx context.Context, txRef string) (*domain.Order, error) {
	o, err := s.orders.GetOrderByPaymentReference(ctx, txRef)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		return o, err
	}
	if number, ok := orderNumberOf(txRef); ok {
		return s.orders.GetOrderByNumber(ctx, number)
	}
	return nil, err
}

// orderNumberOf extracts "NS-YYYYMMDD-XXXXXX" from "NS-YYYYMMDD-XXXXXX-RRRRRRRR".
func orderNumberOf(txRef string) (string, bool) {
	i := strings.LastIndex(txRef, "-")
	if i <= 0 || !strings.HasPrefix(txRef, "NS-") {
		return "", false
	}
	return txRef[:i], true
}

// Accept reports why tx does not settle o, or "" when it does.
func Accept(o *domain.Order, tx *domain.GatewayTransaction) string {
	switch {
	case o.Status == domain.OrderStatusCancelled:
		return "order is cancelled"
	case tx.Status != domain.TransactionSuccessful:
		return "transaction status is " + tx.Status
	case tx.TxRef != o.PaymentReference && !strings.HasPrefix(tx.TxRef, o.OrderNumber+"-"):
		return "transaction reference does not match order"
	case !strings.EqualFold(tx.Currency, o.Currency):
		return "currency mismatch"
	case domain.RoundMoney(tx.Amount) < domain.RoundMoney(o.Total):
		return "amount is less than order total"
	}
	return ""
}

// settle applies a verified transaction. An order that is already paid is
// returned unchanged. The paid transition is a compare-and-set in the
// store, so only one of a racing verify and webhook takes stock and
// publishes order.paid.
func (s *PaymentService) settle(ctx context.Context, o *domain.Order, tx *domain.GatewayTransaction) (*domain.Order, error) {
	if o.PaymentStatus == domain.PaymentStatusPaid {
		return o, nil
	}
	if reason := Accept(o, tx); reason != "" {
		return nil, s.reject(ctx, o, tx, reason)
	}

	paid := domain.PaymentStatusPaid
	processing := domain.OrderStatusProcessing
	txID := strconv.FormatInt(tx.ID, 10)
	ref := tx.TxRef
	paidAt := s.now().UTC()
	update := domain.OrderUpdate{
		PaymentStatus:    &paid,
		TransactionID:    &txID,
		PaymentReference: &ref,
		PaidAt:           &paidAt,
	}
	if o.Status == domain.OrderStatusPending {
		update.Status = &processing
	}
	updated, applied, err := s.orders.SettleOrder(ctx, o.ID, update)
	if err != nil {
		return nil, err
	}
	if !applied {
		if updated.PaymentStatus == domain.PaymentStatusPaid {
			s.logger.Debug("order already settled", zap.String("order_id", updated.ID))
			return updated, nil
		}
		return nil, s.reject(ctx, updated, tx, "order is "+updated.Status)
	}

	restock(ctx, s.catalog, s.logger, updated.Items, -1)
	if owner := updated.Owner(); !owner.IsZero() {
		if err := s.carts.ClearCart(ctx, owner); err != nil {
			s.logger.Warn("failed to clear cart after payment",
				zap.String("order_id", updated.ID),
				zap.Error(err),
			)
		}
	}

	s.metrics.IncrPayment(domain.TransactionSuccessful)
	s.logger.Info("order paid",
		zap.String("order_id", updated.ID),
		zap.String("order_number", updated.OrderNumber),
		zap.String("transaction_id", txID),
	)
	publish(ctx, s.events, s.logger, events.OrderPaid, updated, newOrderEvent(updated))
	return updated, nil
}

// reject records a transaction that does not settle o. A gateway-side
// failure also marks the order's payment as failed.
func (s *PaymentService) reject(ctx context.Context, o *domain.Order, tx *domain.GatewayTransaction, reason string) error {
	s.metrics.IncrPayment("failed")
	s.logger.Warn("payment rejected",
		zap.String("order_id", o.ID),
		zap.String("tx_ref", tx.TxRef),
		zap.String("reason", reason),
	)
	if tx.Status == "failed" {
		failed := domain.PaymentStatusFailed
		if updated, err := s.orders.UpdateOrder(ctx, o.ID, domain.OrderUpdate{PaymentStatus: &failed}); err == nil {
			o = updated
		}
	}
	ev := newOrderEvent(o)
	ev.Reason = reason
	publish(ctx, s.events, s.logger, events.PaymentFailed, o, ev)
	return &domain.ErrPaymentRejected{Reference: tx.TxRef, Reason: reason}
}
