package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/handler"
	"github.com/naijastore/naijastore-api/internal/infra/cache"
	"github.com/naijastore/naijastore-api/internal/infra/events"
	"github.com/naijastore/naijastore-api/internal/infra/memory"
	"github.com/naijastore/naijastore-api/internal/infra/observability"
	"github.com/naijastore/naijastore-api/internal/port"
	"github.com/naijastore/naijastore-api/internal/service"
	"github.com/naijastore/naijastore-api/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const jwtSecret = "super-secret-jwt-token-with-at-least-32-characters"

type stubGateway struct{}

func (stubGateway) InitializePayment(_ context.Context, req *domain.PaymentInitRequest) (*domain.PaymentLink, error) {
	return &domain.PaymentLink{Link: "https://checkout.example/" + req.TxRef}, nil
}

func (stubGateway) VerifyTransaction(context.Context, string) (*domain.GatewayTransaction, error) {
	return nil, &domain.ErrNotFound{Resource: "transaction"}
}

func (stubGateway) VerifyByReference(context.Context, string) (*domain.GatewayTransaction, error) {
	return nil, &domain.ErrNotFound{Resource: "transaction"}
}

func (stubGateway) ValidWebhookSignature(sig string) bool { return sig == "whsec" }

type stubAuth struct{}

func (stubAuth) SignUp(context.Context, *domain.SignupRequest) (*domain.AuthSession, error) {
	return nil, &domain.ErrExternalService{Service: "supabase-auth"}
}

func (stubAuth) SignIn(context.Context, string, string) (*domain.AuthSession, error) {
	return nil, &domain.ErrUnauthorized{Message: "invalid login credentials"}
}

func (stubAuth) Refresh(context.Context, string) (*domain.AuthSession, error) {
	return nil, &domain.ErrUnauthorized{Message: "invalid refresh token"}
}

func (stubAuth) SignOut(context.Context, string) error { return nil }

func (stubAuth) GetUser(context.Context, string) (*domain.AuthUser, error) {
	return &domain.AuthUser{ID: "from-provider", Email: "ada@example.com"}, nil
}

type brokenUpstream struct{}

func (brokenUpstream) Ping(context.Context) error { return &domain.ErrExternalService{Service: "supabase"} }

type testServer struct {
	router http.Handler
	store  *memory.Store
}

func newTestServer(t *testing.T, upstreams map[string]handler.Pinger) *testServer {
	t.Helper()
	return newTestServerWithGateway(t, stubGateway{}, upstreams)
}

func newTestServerWithGateway(t *testing.T, gateway port.PaymentGateway, upstreams map[string]handler.Pinger) *testServer {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	metrics := observability.NewMetrics()
	c := cache.New[any](time.Minute)
	t.Cleanup(c.Close)

	policy := domain.ShippingPolicy{Currency: "NGN", FlatFee: 2500, FreeShippingThreshold: 50000}
	publisher := events.NewLogPublisher(log)
	sessions := session.NewManager(jwtSecret)
	carts := service.NewCartService(store, store, policy, metrics, log)
	profiles := service.NewProfileService(store, c, log)

	svc := handler.Services{
		Catalog:   service.NewCatalogService(store, c, metrics, log),
		Cart:      carts,
		Orders:    service.NewOrderService(store, store, store, store, publisher, policy, metrics, log),
		Payments:  service.NewPaymentService(store, store, store, gateway, publisher, service.PaymentSettings{RedirectURL: "https://shop.example/done"}, metrics, log),
		Auth:      service.NewAuthService(stubAuth{}, store, carts, log),
		Addresses: service.NewAddressService(store, log),
		Profiles:  profiles,
		Admin:     service.NewAdminService(store, store, metrics, "NGN", 5),
		Sessions:  sessions,
		Upstreams: upstreams,
	}
	return &testServer{
		router: handler.NewRouter(svc, []string{"*"}, metrics, log),
		store:  store,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) product(t *testing.T, name string, price float64, stock int) *domain.Product {
	t.Helper()
	p, err := s.store.CreateProduct(context.Background(), &domain.Product{
		Name:          name,
		Slug:          domain.Slugify(name),
		Price:         price,
		StockQuantity: stock,
		IsActive:      true,
	})
	require.NoError(t, err)
	return p
}

func bearer(t *testing.T, userID string) map[string]string {
	t.Helper()
	claims := session.Claims{
		Email: userID + "@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- Health ---

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, map[string]handler.Pinger{"memory": memory.New()})

	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	h := decode[domain.HealthStatus](t, rec)
	assert.Equal(t, "healthy", h.Status)
	require.Len(t, h.Services, 2)
	assert.Equal(t, "memory", h.Services[1].Name)
}

func TestHealthz_DegradedUpstream(t *testing.T) {
	srv := newTestServer(t, map[string]handler.Pinger{"supabase": brokenUpstream{}})

	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[domain.HealthStatus](t, rec).Status)
}

func TestReadyzAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/readyz", "", nil).Code)

	rec := srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute_JSON404(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

// --- Catalog ---

func TestProducts_ListAndGet(t *testing.T) {
	srv := newTestServer(t, nil)
	p := srv.product(t, "Adire Kaftan", 22000, 4)

	rec := srv.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[domain.ProductPage](t, rec)
	assert.Equal(t, 1, page.Total)

	rec = srv.do(t, http.MethodGet, "/api/products/adire-kaftan", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, p.ID, decode[domain.Product](t, rec).ID)

	rec = srv.do(t, http.MethodGet, "/api/products/missing-thing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProducts_BadFilter(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/api/products?min_price=cheap", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "min_price")
}

// --- Session & cart ---

func TestGuestCartFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	p := srv.product(t, "Aso Oke Cap", 6000, 10)

	rec := srv.do(t, http.MethodPost, "/api/session", "", map[string]string{"User-Agent": "Mozilla/5.0"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sid := rec.Header().Get(session.HeaderSessionID)
	require.True(t, session.ValidGuestID(sid), sid)
	hdr := map[string]string{session.HeaderSessionID: sid}

	rec = srv.do(t, http.MethodPost, "/api/cart", `{"product_id":"`+p.ID+`","quantity":2}`, hdr)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decode[domain.Cart](t, rec)
	assert.Equal(t, 2, cart.ItemCount)
	assert.Equal(t, 12000.0, cart.Subtotal)
	assert.Equal(t, 14500.0, cart.Total)

	// Another guest sees an empty cart.
	rec = srv.do(t, http.MethodGet, "/api/cart", "", map[string]string{session.HeaderSessionID: "guest_0000000000000000_0000000000000000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[domain.Cart](t, rec).ItemCount)

	rec = srv.do(t, http.MethodDelete, "/api/cart", "", hdr)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/cart", "", hdr)
	assert.Equal(t, 0, decode[domain.Cart](t, rec).ItemCount)
}

func TestCreateSession_ReadsClientHints(t *testing.T) {
	srv := newTestServer(t, nil)
	issue := func(platform, mobile string) string {
		rec := srv.do(t, http.MethodPost, "/api/session", "", map[string]string{
			"User-Agent":         "Mozilla/5.0",
			"Sec-CH-UA":          `"Chromium";v="128"`,
			"Sec-CH-UA-Platform": platform,
			"Sec-CH-UA-Mobile":   mobile,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		return rec.Header().Get(session.HeaderSessionID)
	}

	windows := issue(`"Windows"`, "?0")
	again := issue(`"Windows"`, "?0")
	android := issue(`"Android"`, "?1")
	assert.Equal(t, windows[:22], again[:22])
	assert.NotEqual(t, windows[:22], android[:22])
}

func TestCart_ValidationErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	hdr := map[string]string{session.HeaderSessionID: "guest_0123456789abcdef_fedcba9876543210"}

	rec := srv.do(t, http.MethodPost, "/api/cart", `{"product_id":"not-a-uuid","quantity":1}`, hdr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "product_id")

	rec = srv.do(t, http.MethodPost, "/api/cart", `{"product_id":`, hdr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartMerge_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/cart/merge", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- Orders ---

const guestHeader = "guest_0123456789abcdef_fedcba9876543210"

func orderBody(productID, phone string) string {
	return `{
		"email": "ada@example.com",
		"shipping_address": {
			"full_name": "Ada Obi",
			"phone": "` + phone + `",
			"address_line1": "12 Admiralty Way",
			"city": "Lekki",
			"state": "Lagos"
		},
		"items": [{"product_id": "` + productID + `", "quantity": 2}]
	}`
}

func TestCreateOrder_BadPhone(t *testing.T) {
	srv := newTestServer(t, nil)
	p := srv.product(t, "Ankara Tote", 8000, 5)

	rec := srv.do(t, http.MethodPost, "/api/orders", orderBody(p.ID, "12345"),
		map[string]string{session.HeaderSessionID: guestHeader})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "shipping_address.phone")
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	srv := newTestServer(t, nil)
	p := srv.product(t, "Ankara Tote", 8000, 5)
	hdr := map[string]string{
		session.HeaderSessionID:      guestHeader,
		handler.HeaderIdempotencyKey: "checkout-42",
	}

	rec := srv.do(t, http.MethodPost, "/api/orders", orderBody(p.ID, "+2348031234567"), hdr)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[domain.Order](t, rec)
	assert.Equal(t, 18500.0, first.Total)
	assert.Regexp(t, `^NS-\d{8}-[A-Z0-9]{6}$`, first.OrderNumber)

	rec = srv.do(t, http.MethodPost, "/api/orders", orderBody(p.ID, "+2348031234567"), hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.ID, decode[domain.Order](t, rec).ID)

	rec = srv.do(t, http.MethodGet, "/api/orders/track/"+first.OrderNumber+"?email=ADA@example.com", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.ID, decode[domain.Order](t, rec).ID)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	srv := newTestServer(t, nil)
	p := srv.product(t, "Ankara Tote", 8000, 1)

	rec := srv.do(t, http.MethodPost, "/api/orders", orderBody(p.ID, "08031234567"),
		map[string]string{session.HeaderSessionID: guestHeader})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// --- Auth-guarded routes ---

func TestProfile_RequiresToken(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/profile", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired token")
}

func TestProfile_AutoProvisioned(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/api/profile", "", bearer(t, "user-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[domain.Profile](t, rec)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, domain.RoleCustomer, p.Role)
}

func TestAddresses_CreateAndList(t *testing.T) {
	srv := newTestServer(t, nil)
	auth := bearer(t, "user-2")

	body := `{"full_name":"Ada Obi","phone":"08031234567","address_line1":"12 Admiralty Way","city":"Lekki","state":"Lagos"}`
	rec := srv.do(t, http.MethodPost, "/api/addresses", body, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/addresses", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Addresses []domain.Address `json:"addresses"`
	}](t, rec)
	require.Len(t, list.Addresses, 1)
	assert.True(t, list.Addresses[0].IsDefault)
}

func TestAdmin_Guarded(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.product(t, "Ankara Tote", 8000, 2)

	rec := srv.do(t, http.MethodGet, "/api/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/admin/stats", "", bearer(t, "shopper"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, err := srv.store.UpsertProfile(context.Background(), &domain.Profile{ID: "boss", Email: "boss@example.com", Role: domain.RoleAdmin})
	require.NoError(t, err)

	rec = srv.do(t, http.MethodGet, "/api/admin/stats", "", bearer(t, "boss"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[domain.DashboardStats](t, rec)
	assert.Equal(t, 1, stats.TotalProducts)
	assert.Equal(t, 1, stats.LowStock)
}

func TestAdmin_CreateProduct(t *testing.T) {
	srv := newTestServer(t, nil)
	_, err := srv.store.UpsertProfile(context.Background(), &domain.Profile{ID: "boss", Email: "boss@example.com", Role: domain.RoleAdmin})
	require.NoError(t, err)

	rec := srv.do(t, http.MethodPost, "/api/admin/products", `{"name":"Buba and Sokoto","price":30000,"stock_quantity":3}`, bearer(t, "boss"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "buba-and-sokoto", decode[domain.Product](t, rec).Slug)

	rec = srv.do(t, http.MethodGet, "/api/products/buba-and-sokoto", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- Payments ---

func TestWebhook_BadSignature(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/payments/webhook", `{"event":"charge.completed","data":{"id":1}}`,
		map[string]string{handler.HeaderWebhookSignature: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInitializePayment_UnknownOrder(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/payments/initialize", `{"order_id":"6f1c1c9e-2d7a-4f0e-9a0b-1b2c3d4e5f60"}`,
		map[string]string{session.HeaderSessionID: guestHeader})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogin_ProviderRejects(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"hunter22"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentUser(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/api/auth/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/auth/user", "", bearer(t, "user-3"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "from-provider", decode[domain.AuthUser](t, rec).ID)
}
