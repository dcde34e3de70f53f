package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/cache"
	"github.com/naijastore/naijastore-api/internal/infra/memory"
	"github.com/naijastore/naijastore-api/internal/infra/observability"
	"github.com/naijastore/naijastore-api/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockGateway struct {
	mu        sync.Mutex
	inits     []*domain.PaymentInitRequest
	tx        *domain.GatewayTransaction
	err       error
	hash      string
	verifyIDs []string
}

func (m *mockGateway) InitializePayment(_ context.Context, req *domain.PaymentInitRequest) (*domain.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.inits = append(m.inits, req)
	return &domain.PaymentLink{Link: "https://checkout.example/" + req.TxRef}, nil
}

func (m *mockGateway) VerifyTransaction(_ context.Context, id string) (*domain.GatewayTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyIDs = append(m.verifyIDs, id)
	return m.tx, m.err
}

func (m *mockGateway) VerifyByReference(_ context.Context, _ string) (*domain.GatewayTransaction, error) {
	return m.tx, m.err
}

func (m *mockGateway) ValidWebhookSignature(sig string) bool {
	return m.hash != "" && sig == m.hash
}

type mockAuth struct {
	session *domain.AuthSession
	err     error
}

func (m *mockAuth) SignUp(_ context.Context, _ *domain.SignupRequest) (*domain.AuthSession, error) {
	return m.session, m.err
}

func (m *mockAuth) SignIn(_ context.Context, _, _ string) (*domain.AuthSession, error) {
	return m.session, m.err
}

func (m *mockAuth) Refresh(_ context.Context, _ string) (*domain.AuthSession, error) {
	return m.session, m.err
}

func (m *mockAuth) SignOut(_ context.Context, _ string) error { return m.err }

func (m *mockAuth) GetUser(_ context.Context, _ string) (*domain.AuthUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session.User, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

// --- Fixture ---

var testPolicy = domain.ShippingPolicy{Currency: "NGN", FlatFee: 2500, FreeShippingThreshold: 50000}

const guestID = "guest_0123456789abcdef_fedcba9876543210"

type fixture struct {
	store    *memory.Store
	metrics  *observability.Metrics
	events   *recordingPublisher
	gateway  *mockGateway
	auth     *mockAuth
	catalog  *service.CatalogService
	cart     *service.CartService
	orders   *service.OrderService
	payments *service.PaymentService
	accounts *service.AuthService
	address  *service.AddressService
	profiles *service.ProfileService
	admin    *service.AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		store:   memory.New(),
		metrics: observability.NewMetrics(),
		events:  &recordingPublisher{},
		gateway: &mockGateway{hash: "whsec"},
		auth:    &mockAuth{},
	}
	c := cache.New[any](time.Minute)
	t.Cleanup(c.Close)

	f.catalog = service.NewCatalogService(f.store, c, f.metrics, log)
	f.cart = service.NewCartService(f.store, f.store, testPolicy, f.metrics, log)
	f.orders = service.NewOrderService(f.store, f.store, f.store, f.store, f.events, testPolicy, f.metrics, log)
	f.payments = service.NewPaymentService(f.store, f.store, f.store, f.gateway, f.events,
		service.PaymentSettings{RedirectURL: "https://shop.example/checkout/complete"}, f.metrics, log)
	f.accounts = service.NewAuthService(f.auth, f.store, f.cart, log)
	f.address = service.NewAddressService(f.store, log)
	f.profiles = service.NewProfileService(f.store, c, log)
	f.admin = service.NewAdminService(f.store, f.store, f.metrics, "NGN", 5)
	return f
}

func (f *fixture) product(t *testing.T, name string, price float64, stock int) *domain.Product {
	t.Helper()
	p, err := f.store.CreateProduct(context.Background(), &domain.Product{
		Name:          name,
		Slug:          domain.Slugify(name),
		Price:         price,
		StockQuantity: stock,
		IsActive:      true,
	})
	require.NoError(t, err)
	return p
}

func guest() domain.Identity { return domain.Identity{SessionID: guestID} }

func user(id string) domain.Identity {
	return domain.Identity{UserID: id, Email: id + "@example.com", SessionID: guestID, Token: "tok-" + id}
}

func lagos() *domain.ShippingAddress {
	return &domain.ShippingAddress{
		FullName:     "Ada Obi",
		Phone:        "08031234567",
		AddressLine1: "12 Admiralty Way",
		City:         "Lekki",
		State:        "Lagos",
	}
}
