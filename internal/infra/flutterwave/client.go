// Package flutterwave is a client for the Flutterwave v3 REST API:
// hosted checkout links, transaction verification and webhook signatures.
package flutterwave

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("flutterwave")

// Client calls Flutterwave with the merchant secret key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	secretHash string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a Flutterwave client. secretHash is the value
// configured on the dashboard and echoed in the verif-hash header.
func NewClient(httpClient *http.Client, baseURL, secretKey, secretHash string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		secretHash: secretHash,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
		logger:     logger,
	}
}

// envelope is the standard v3 response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("flutterwave returned status %d: %s", e.Status, e.Message)
}

// InitializePayment creates a hosted checkout and returns its link.
func (c *Client) InitializePayment(ctx context.Context, req *domain.PaymentInitRequest) (*domain.PaymentLink, error) {
	ctx, span := tracer.Start(ctx, "Flutterwave.InitializePayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.tx_ref", req.TxRef))

	var link domain.PaymentLink
	if err := c.do(ctx, http.MethodPost, "/v3/payments", req, &link); err != nil {
		return nil, err
	}
	if link.Link == "" {
		return nil, &domain.ErrExternalService{Service: "flutterwave", Err: errors.New("empty checkout link")}
	}
	return &link, nil
}

// VerifyTransaction fetches a transaction by its Flutterwave id.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*domain.GatewayTransaction, error) {
	ctx, span := tracer.Start(ctx, "Flutterwave.VerifyTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("payment.transaction_id", transactionID))

	var tx verifiedTransaction
	if err := c.do(ctx, http.MethodGet, "/v3/transactions/"+url.PathEscape(transactionID)+"/verify", nil, &tx); err != nil {
		return nil, err
	}
	return tx.toDomain(), nil
}

// VerifyByReference fetches a transaction by the merchant tx_ref.
func (c *Client) VerifyByReference(ctx context.Context, txRef string) (*domain.GatewayTransaction, error) {
	ctx, span := tracer.Start(ctx, "Flutterwave.VerifyByReference")
	defer span.End()
	span.SetAttributes(attribute.String("payment.tx_ref", txRef))

	var tx verifiedTransaction
	path := "/v3/transactions/verify_by_reference?" + url.Values{"tx_ref": {txRef}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &tx); err != nil {
		return nil, err
	}
	return tx.toDomain(), nil
}

// ValidWebhookSignature compares the verif-hash header with the configured
// secret hash in constant time. An unset hash rejects every webhook.
func (c *Client) ValidWebhookSignature(signature string) bool {
	if c.secretHash == "" || signature == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(c.secretHash)) == 1
}

// verifiedTransaction is the data block of the verify endpoints.
type verifiedTransaction struct {
	ID            int64   `json:"id"`
	TxRef         string  `json:"tx_ref"`
	FlwRef        string  `json:"flw_ref"`
	Amount        float64 `json:"amount"`
	ChargedAmount float64 `json:"charged_amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	PaymentType   string  `json:"payment_type"`
	CreatedAt     string  `json:"created_at"`
	Customer      struct {
		Email string `json:"email"`
	} `json:"customer"`
}

func (t *verifiedTransaction) toDomain() *domain.GatewayTransaction {
	return &domain.GatewayTransaction{
		ID:            t.ID,
		TxRef:         t.TxRef,
		FlwRef:        t.FlwRef,
		Amount:        t.Amount,
		ChargedAmount: t.ChargedAmount,
		Currency:      t.Currency,
		Status:        t.Status,
		PaymentType:   t.PaymentType,
		CustomerEmail: t.Customer.Email,
		CreatedAt:     parseTime(t.CreatedAt),
	}
}

// do runs one API call through the bulkhead, breaker and retry, decoding
// the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer c.bulkhead.Release()

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode flutterwave request: %w", err)
		}
		payload = b
	}

	var env envelope
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var body io.Reader
			if payload != nil {
				body = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Authorization", "Bearer "+c.secretKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Error("flutterwave: request failed",
					zap.String("method", method),
					zap.String("path", path),
					zap.Error(err),
				)
				return err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			env = envelope{}
			_ = json.Unmarshal(data, &env)

			if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Status == "error" {
				c.logger.Warn("flutterwave: unsuccessful response",
					zap.String("method", method),
					zap.String("path", path),
					zap.Int("status", resp.StatusCode),
					zap.String("message", env.Message),
				)
				ae := &apiError{Status: resp.StatusCode, Message: env.Message}
				if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return resilience.Permanent(ae)
				}
				return ae
			}
			return nil
		})
	})
	if err != nil {
		return mapError(err)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &domain.ErrExternalService{Service: "flutterwave", Err: fmt.Errorf("decode data: %w", err)}
		}
	}
	return nil
}

func mapError(err error) error {
	if resilience.IsCircuitOpen(err) {
		return &domain.ErrCircuitOpen{Service: "flutterwave"}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ae *apiError
	if errors.As(err, &ae) {
		switch ae.Status {
		case http.StatusNotFound:
			return &domain.ErrNotFound{Resource: "transaction", ID: ae.Message}
		case http.StatusBadRequest:
			return &domain.ErrPaymentRejected{Reason: ae.Message}
		}
	}
	return &domain.ErrExternalService{Service: "flutterwave", Err: err}
}
