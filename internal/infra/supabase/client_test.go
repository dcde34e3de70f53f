package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	return NewClient(srv.Client(), srv.URL+"/", "anon", "service", resilience.NewCircuitBreaker("supabase-test"), cfg, zap.NewNop())
}

func TestGetProduct_SendsKeysAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/products", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service", r.Header.Get("Authorization"))
		assert.Equal(t, "eq.p1", r.URL.Query().Get("id"))
		assert.Equal(t, productSelect, r.URL.Query().Get("select"))
		w.Write([]byte(`[{"id":"p1","name":"Ankara Dress","slug":"ankara-dress","price":15000,"stock_quantity":3,"category":{"id":"c1","name":"Dresses","slug":"dresses"}}]`))
	})

	p, err := c.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ankara Dress", p.Name)
	assert.Equal(t, 3, p.StockQuantity)
	require.NotNil(t, p.Category)
	assert.Equal(t, "dresses", p.Category.Slug)
}

func TestGetProduct_EmptyArrayIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := c.GetProduct(context.Background(), "missing")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.ID)
}

func TestListProducts_FiltersAndTotal(t *testing.T) {
	featured := true
	minPrice := 1000.0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		assert.Equal(t, "*,category:categories!inner(*)", q.Get("select"))
		assert.Equal(t, "eq.shoes", q.Get("category.slug"))
		assert.Equal(t, "eq.true", q.Get("is_active"))
		assert.Equal(t, "eq.true", q.Get("is_featured"))
		assert.Equal(t, []string{"gte.1000.00"}, q["price"])
		assert.Equal(t, "gt.0", q.Get("stock_quantity"))
		assert.Equal(t, "price.asc", q.Get("order"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "10", q.Get("offset"))
		assert.Equal(t, "(name.ilike.*red sneaker*,description.ilike.*red sneaker*)", q.Get("or"))
		w.Header().Set("Content-Range", "10-10/11")
		w.Write([]byte(`[{"id":"p11","name":"Red Sneaker","price":2000}]`))
	})

	page, err := c.ListProducts(context.Background(), domain.ProductFilter{
		CategorySlug: "shoes",
		Search:       "red, sneaker",
		Featured:     &featured,
		MinPrice:     &minPrice,
		InStockOnly:  true,
		Sort:         domain.SortPriceAsc,
		Page:         2,
		PageSize:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, page.Total)
	assert.Len(t, page.Products, 1)
}

func TestClientError_IsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
	})

	_, err := c.CreateCategory(context.Background(), &domain.Category{Name: "Shoes", Slug: "shoes"})
	var conflict *domain.ErrConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestServerError_IsRetriedThenExternal(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ListCategories(context.Background())
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "supabase/ListCategories", ext.Service)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCartOwnerFilter_Guest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.guest_abc", q.Get("session_id"))
		assert.Equal(t, "is.null", q.Get("user_id"))
		assert.Equal(t, "is.null", q.Get("size"))
		assert.Equal(t, "eq.red", q.Get("color"))
		w.Write([]byte(`[{"id":"ci1","product_id":"p1","quantity":2,"color":"red"}]`))
	})

	item, err := c.FindCartItem(context.Background(), domain.CartOwner{SessionID: "guest_abc"},
		domain.LineKey{ProductID: "p1", Color: "red"})
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
}

func TestCreateOrder_RollsBackOnItemFailure(t *testing.T) {
	var deleted int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/orders":
			w.Write([]byte(`[{"id":"o1","order_number":"NS-1"}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/order_items":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"bad item"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/rest/v1/orders":
			assert.Equal(t, "eq.o1", r.URL.Query().Get("id"))
			atomic.AddInt32(&deleted, 1)
			w.Write([]byte(`[{"id":"o1"}]`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	_, err := c.CreateOrder(context.Background(), &domain.Order{
		OrderNumber: "NS-1",
		Items:       []domain.OrderItem{{ProductID: "p1", Quantity: 1, Price: 100}},
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&deleted))
}

func TestCreateAddress_FirstBecomesDefault(t *testing.T) {
	var cleared int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Range", "*/0")
			w.Write([]byte(`[]`))
		case http.MethodPatch:
			assert.Equal(t, "eq.true", r.URL.Query().Get("is_default"))
			atomic.AddInt32(&cleared, 1)
			w.Write([]byte(`[]`))
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			var row map[string]any
			assert.NoError(t, json.Unmarshal(body, &row))
			assert.Equal(t, true, row["is_default"])
			w.Write([]byte(`[{"id":"a1","user_id":"u1","is_default":true}]`))
		}
	})

	a, err := c.CreateAddress(context.Background(), &domain.Address{UserID: "u1", FullName: "Ada"})
	require.NoError(t, err)
	assert.True(t, a.IsDefault)
	assert.Equal(t, int32(1), atomic.LoadInt32(&cleared))
}

func TestSignIn_InvalidCredentialsIsUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	_, err := c.SignIn(context.Background(), "ada@example.com", "wrong")
	var unauth *domain.ErrUnauthorized
	require.True(t, errors.As(err, &unauth))
	assert.Equal(t, "Invalid login credentials", unauth.Message)
}

func TestSignUp_UserOnlyReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"u1","email":"ada@example.com"}`))
	})

	s, err := c.SignUp(context.Background(), &domain.SignupRequest{Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Empty(t, s.AccessToken)
	require.NotNil(t, s.User)
	assert.Equal(t, "u1", s.User.ID)
}

func TestContentRangeTotal(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, -1, contentRangeTotal(h))
	h.Set("Content-Range", "0-19/57")
	assert.Equal(t, 57, contentRangeTotal(h))
	h.Set("Content-Range", "0-19/*")
	assert.Equal(t, -1, contentRangeTotal(h))
}

func TestGetUser_UsesCallerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "Bearer user-jwt", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"u1","email":"ada@example.com","role":"authenticated"}`))
	})

	u, err := c.GetUser(context.Background(), "user-jwt")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "authenticated", u.Role)
}

func TestNotFoundStatus_IsNotFound(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		switch r.URL.Path {
		case "/auth/v1/user":
			w.Write([]byte(`{"error_code":"user_not_found","msg":"User not found"}`))
		default:
			w.Write([]byte(`{"code":"PGRST205","message":"Could not find the table 'public.products' in the schema cache"}`))
		}
	})

	_, err := c.GetUser(context.Background(), "deleted-user-jwt")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "user", nf.Resource)

	_, err = c.ListCategories(context.Background())
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "record", nf.Resource)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSettleOrder_FiltersOpenOrders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.Method {
		case http.MethodPatch:
			assert.Equal(t, "eq.o1", q.Get("id"))
			assert.Equal(t, "neq.paid", q.Get("payment_status"))
			assert.Equal(t, "neq.cancelled", q.Get("status"))
			w.Write([]byte(`[{"id":"o1","order_number":"NS-1","status":"processing","payment_status":"paid"}]`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	paid := domain.PaymentStatusPaid
	o, applied, err := c.SettleOrder(context.Background(), "o1", domain.OrderUpdate{PaymentStatus: &paid})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
}

func TestSettleOrder_LostRaceReadsBack(t *testing.T) {
	var reads int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			w.Write([]byte(`[]`))
		case http.MethodGet:
			atomic.AddInt32(&reads, 1)
			assert.Equal(t, "eq.o1", r.URL.Query().Get("id"))
			w.Write([]byte(`[{"id":"o1","order_number":"NS-1","status":"processing","payment_status":"paid"}]`))
		}
	})

	paid := domain.PaymentStatusPaid
	o, applied, err := c.SettleOrder(context.Background(), "o1", domain.OrderUpdate{PaymentStatus: &paid})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "NS-1", o.OrderNumber)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reads))
}
