package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// HeaderIdempotencyKey makes POST /api/orders safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderWebhookSignature carries the Flutterwave secret hash.
const HeaderWebhookSignature = "verif-hash"

// ============================================================
// Orders
// ============================================================

func createOrderHandler(orders *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.CreateOrder")
		defer span.End()

		var req domain.CreateOrderRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if len(req.IdempotencyKey) > 255 {
			handleServiceError(w, &domain.ErrValidation{Field: HeaderIdempotencyKey, Message: "must be at most 255 characters"}, logger)
			return
		}

		o, created, err := orders.Create(ctx, IdentityFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("order.id", o.ID), attribute.Bool("order.created", created))

		status := http.StatusCreated
		if !created {
			status = http.StatusOK
		}
		writeJSON(w, status, o)
	}
}

func trackOrderHandler(orders *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := orders.Track(r.Context(), chi.URLParam(r, "orderNumber"), r.URL.Query().Get("email"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func listMyOrdersHandler(orders *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, size := parsePagination(r)
		list, err := orders.ListMine(r.Context(), IdentityFromContext(r.Context()).UserID, page, size)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": list, "page": page, "page_size": size})
	}
}

func getOrderHandler(orders *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := orders.Get(r.Context(), IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// --- Admin ---

func adminListOrdersHandler(orders *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, size := parsePagination(r)
		f := domain.OrderFilter{
			Status:        r.URL.Query().Get("status"),
			PaymentStatus: r.URL.Query().Get("payment_status"),
			Page:          page,
			PageSize:      size,
		}
		list, err := orders.AdminList(r.Context(), f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": list, "page": page, "page_size": size})
	}
}

func adminGetOrderHandler(orders *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := orders.AdminGet(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func adminUpdateOrderStatusHandler(orders *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.UpdateOrderStatusRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		o, err := orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// ============================================================
// Payments
// ============================================================

func initializePaymentHandler(payments *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.InitializePaymentRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		resp, err := payments.Initialize(r.Context(), IdentityFromContext(r.Context()), req.OrderID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func verifyPaymentHandler(payments *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.VerifyPaymentRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		o, err := payments.Verify(r.Context(), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		// The redirect can land on any browser; only the buyer sees the order.
		if !o.OwnedBy(IdentityFromContext(r.Context())) {
			writeJSON(w, http.StatusOK, o.Outcome())
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// paymentWebhookHandler acknowledges Flutterwave webhooks. The raw body
// is passed on untouched; the signature is the shared secret hash.
func paymentWebhookHandler(payments *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			handleServiceError(w, &domain.ErrValidation{Field: "body", Message: "unreadable webhook body"}, logger)
			return
		}
		if err := payments.HandleWebhook(r.Context(), r.Header.Get(HeaderWebhookSignature), body); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
