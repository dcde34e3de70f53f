// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations (Supabase PostgREST, direct Postgres,
// Flutterwave, Kafka).
package port

import (
	"context"

	"github.com/naijastore/naijastore-api/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string)
}

// CatalogStore reads and writes categories and products.
type CatalogStore interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id string, in *domain.CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListProducts(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, in *domain.ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, productID string, delta int) error
	CountProducts(ctx context.Context, lowStockBelow int) (total, lowStock int, err error)
}

// CartStore persists cart lines for users and guest sessions.
type CartStore interface {
	ListCartItems(ctx context.Context, owner domain.CartOwner) ([]domain.CartItem, error)
	FindCartItem(ctx context.Context, owner domain.CartOwner, key domain.LineKey) (*domain.CartItem, error)
	CreateCartItem(ctx context.Context, item *domain.CartItem) (*domain.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, owner domain.CartOwner, itemID string, quantity int) (*domain.CartItem, error)
	DeleteCartItem(ctx context.Context, owner domain.CartOwner, itemID string) error
	ClearCart(ctx context.Context, owner domain.CartOwner) error
}

// OrderStore persists orders and their line items.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetOrderByPaymentReference(ctx context.Context, txRef string) (*domain.Order, error)
	FindOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, id string, u domain.OrderUpdate) (*domain.Order, error)
	// SettleOrder applies u only while the order is neither paid nor
	// cancelled, and reports whether it did. Exactly one of several
	// concurrent callers wins.
	SettleOrder(ctx context.Context, id string, u domain.OrderUpdate) (*domain.Order, bool, error)
	OrderStats(ctx context.Context) (*domain.DashboardStats, error)
}

// AddressStore persists user addresses. Implementations must keep at most
// one default address per user.
type AddressStore interface {
	ListAddresses(ctx context.Context, userID string) ([]domain.Address, error)
	GetAddress(ctx context.Context, userID, addressID string) (*domain.Address, error)
	CreateAddress(ctx context.Context, a *domain.Address) (*domain.Address, error)
	UpdateAddress(ctx context.Context, a *domain.Address) (*domain.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID string) error
	SetDefaultAddress(ctx context.Context, userID, addressID string) (*domain.Address, error)
}

// ProfileStore reads and writes rows of the users table.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, updates map[string]any) (*domain.Profile, error)
}

// AuthProvider is the hosted identity provider (Supabase GoTrue).
type AuthProvider interface {
	SignUp(ctx context.Context, req *domain.SignupRequest) (*domain.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*domain.AuthUser, error)
}

// PaymentGateway is the hosted payment provider (Flutterwave).
type PaymentGateway interface {
	InitializePayment(ctx context.Context, req *domain.PaymentInitRequest) (*domain.PaymentLink, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*domain.GatewayTransaction, error)
	VerifyByReference(ctx context.Context, txRef string) (*domain.GatewayTransaction, error)
	ValidWebhookSignature(signature string) bool
}

// EventPublisher emits order lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, key string, payload any) error
	Close() error
}
