// Package supabase provides a client for Supabase (PostgREST + GoTrue).
// It is the primary data backend: catalog, carts, orders, addresses and
// profiles all live in the hosted Postgres behind PostgREST.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase PostgREST and GoTrue APIs.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	if serviceRoleKey == "" {
		serviceRoleKey = apiKey
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// statusError is a non-2xx response from Supabase.
type statusError struct {
	Status  int
	Code    string
	Message string
}

func (e *statusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase returned status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Message)
}

// postgrestError is the PostgREST/GoTrue error body.
type postgrestError struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func parseStatusError(status int, body []byte) *statusError {
	se := &statusError{Status: status, Message: strings.TrimSpace(string(body))}
	var pe postgrestError
	if json.Unmarshal(body, &pe) == nil {
		se.Code = pe.Code
		for _, m := range []string{pe.Message, pe.Msg, pe.ErrorDescription, pe.Error} {
			if m != "" {
				se.Message = m
				break
			}
		}
	}
	return se
}

// response is a successful upstream reply.
type response struct {
	body   []byte
	header http.Header
}

// call describes one upstream request.
type call struct {
	method string
	path   string // relative to baseURL, e.g. "rest/v1/products?id=eq.1"
	body   any
	prefer string
	// bearer overrides the service-role Authorization header.
	bearer string
}

// execute runs c through the circuit breaker with retries. 4xx replies are
// not retried and do not trip the breaker.
func (c *Client) execute(ctx context.Context, op string, rq call) (*response, error) {
	ctx, span := tracer.Start(ctx, "Supabase."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", rq.method),
		attribute.String("supabase.path", rq.path),
	)

	var payload []byte
	if rq.body != nil {
		b, err := json.Marshal(rq.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", op, err)
		}
		payload = b
	}

	var resp *response
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			r, err := c.send(ctx, rq, payload)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	if err != nil {
		return nil, c.mapError(op, err)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, rq call, payload []byte) (*response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, rq.method, c.baseURL+"/"+rq.path, body)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", rq.method),
			zap.String("path", rq.path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}

	bearer := c.serviceRoleKey
	if rq.bearer != "" {
		bearer = rq.bearer
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if rq.prefer != "" {
		req.Header.Set("Prefer", rq.prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", rq.method),
			zap.String("path", rq.path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", rq.method),
			zap.String("path", rq.path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", rq.method),
			zap.String("path", rq.path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(data)),
		)
		se := parseStatusError(resp.StatusCode, data)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(se)
		}
		return nil, se
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", rq.method),
		zap.String("path", rq.path),
		zap.Int("status", resp.StatusCode),
	)
	return &response{body: data, header: resp.Header}, nil
}

// mapError converts transport and status errors into domain errors.
func (c *Client) mapError(op string, err error) error {
	if resilience.IsCircuitOpen(err) {
		return &domain.ErrCircuitOpen{Service: "supabase"}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.Code == "23505" || se.Status == http.StatusConflict:
			return &domain.ErrConflict{Message: se.Message}
		case se.Code == "23503":
			return &domain.ErrValidation{Field: "reference", Message: se.Message}
		case se.Code == "22P02":
			return &domain.ErrValidation{Field: "id", Message: se.Message}
		case se.Status == http.StatusBadRequest || se.Status == http.StatusUnprocessableEntity:
			return &domain.ErrValidation{Field: "request", Message: se.Message}
		case se.Status == http.StatusUnauthorized && strings.HasPrefix(op, "Auth"):
			return &domain.ErrUnauthorized{Message: se.Message}
		case se.Status == http.StatusNotFound:
			resource := "record"
			if strings.HasPrefix(op, "Auth") {
				resource = "user"
			}
			return &domain.ErrNotFound{Resource: resource, ID: se.Message}
		}
	}
	return &domain.ErrExternalService{Service: "supabase/" + op, Err: err}
}

// rest builds a PostgREST path for table with the given query.
func rest(table string, q url.Values) string {
	if len(q) == 0 {
		return "rest/v1/" + table
	}
	return "rest/v1/" + table + "?" + q.Encode()
}

// eq returns a PostgREST equality filter value.
func eq(v string) string { return "eq." + v }

// in returns a PostgREST membership filter value.
func in(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, "") + `"`
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}

// decodeRows unmarshals a PostgREST array reply.
func decodeRows[T any](body []byte, what string) ([]T, error) {
	var rows []T
	if len(body) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return rows, nil
}

// decodeOne unmarshals the first row of a PostgREST array reply, or
// returns ErrNotFound.
func decodeOne[T any](body []byte, resource, id string) (*T, error) {
	rows, err := decodeRows[T](body, resource)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return &rows[0], nil
}

// contentRangeTotal parses the total from a "0-19/57" Content-Range header.
func contentRangeTotal(h http.Header) int {
	cr := h.Get("Content-Range")
	i := strings.LastIndex(cr, "/")
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(cr[i+1:])
	if err != nil {
		return -1
	}
	return n
}

// Ping checks PostgREST reachability for /healthz.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	_, err := c.execute(ctx, "Ping", call{method: http.MethodGet, path: rest("categories", q)})
	return err
}
