package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/observability"
	"github.com/naijastore/naijastore-api/internal/service"
	"github.com/naijastore/naijastore-api/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger is an upstream the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles everything the routes call into.
type Services struct {
	Catalog   *service.CatalogService
	Cart      *service.CartService
	Orders    *service.OrderService
	Payments  *service.PaymentService
	Auth      *service.AuthService
	Addresses *service.AddressService
	Profiles  *service.ProfileService
	Admin     *service.AdminService
	Sessions  *session.Manager
	// Upstreams are probed by /healthz, keyed by display name.
	Upstreams map[string]Pinger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, allowedOrigins []string, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", session.HeaderSessionID, "Idempotency-Key"},
		ExposedHeaders:   []string{session.HeaderSessionID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Upstreams))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(IdentityMiddleware(svc.Sessions, logger))

		// --- Catalog ---
		r.Get("/products", listProductsHandler(svc.Catalog, logger))
		r.Get("/products/{idOrSlug}", getProductHandler(svc.Catalog, logger))
		r.Get("/categories", listCategoriesHandler(svc.Catalog, logger))
		r.Get("/categories/{slug}", getCategoryHandler(svc.Catalog, logger))

		// --- Guest session & cart ---
		r.Post("/session", createSessionHandler(svc.Sessions, logger))
		r.Get("/cart", getCartHandler(svc.Cart, logger))
		r.Post("/cart", addCartItemHandler(svc.Cart, logger))
		r.Delete("/cart", clearCartHandler(svc.Cart, logger))
		r.Put("/cart/{itemId}", updateCartItemHandler(svc.Cart, logger))
		r.Delete("/cart/{itemId}", removeCartItemHandler(svc.Cart, logger))
		r.With(RequireAuth(logger)).Post("/cart/merge", mergeCartHandler(svc.Cart, logger))

		// --- Auth ---
		r.Post("/auth/signup", signupHandler(svc.Auth, logger))
		r.Post("/auth/login", loginHandler(svc.Auth, logger))
		r.Post("/auth/refresh", refreshHandler(svc.Auth, logger))
		r.Post("/auth/logout", logoutHandler(svc.Auth, logger))
		r.With(RequireAuth(logger)).Get("/auth/user", currentUserHandler(svc.Auth, logger))

		// --- Orders & payments ---
		r.Post("/orders", createOrderHandler(svc.Orders, logger))
		r.Get("/orders/track/{orderNumber}", trackOrderHandler(svc.Orders, logger))
		r.Post("/payments/initialize", initializePaymentHandler(svc.Payments, logger))
		r.Post("/payments/verify", verifyPaymentHandler(svc.Payments, logger))
		r.Post("/payments/webhook", paymentWebhookHandler(svc.Payments, logger))

		// --- Signed-in customers ---
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(logger))

			r.Get("/profile", getProfileHandler(svc.Profiles, logger))
			r.Put("/profile", updateProfileHandler(svc.Profiles, logger))

			r.Get("/addresses", listAddressesHandler(svc.Addresses, logger))
			r.Post("/addresses", createAddressHandler(svc.Addresses, logger))
			r.Put("/addresses/{id}", updateAddressHandler(svc.Addresses, logger))
			r.Delete("/addresses/{id}", deleteAddressHandler(svc.Addresses, logger))
			r.Post("/addresses/{id}/default", setDefaultAddressHandler(svc.Addresses, logger))

			r.Get("/orders", listMyOrdersHandler(svc.Orders, logger))
			r.Get("/orders/{id}", getOrderHandler(svc.Orders, logger))
		})

		// --- Admin ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAuth(logger))
			r.Use(RequireAdmin(svc.Profiles, logger))

			r.Get("/stats", adminStatsHandler(svc.Admin, logger))
			r.Get("/metrics", adminMetricsHandler(svc.Admin))

			r.Get("/products", adminListProductsHandler(svc.Catalog, logger))
			r.Post("/products", adminCreateProductHandler(svc.Catalog, logger))
			r.Put("/products/{id}", adminUpdateProductHandler(svc.Catalog, logger))
			r.Delete("/products/{id}", adminDeleteProductHandler(svc.Catalog, logger))

			r.Get("/categories", listCategoriesHandler(svc.Catalog, logger))
			r.Post("/categories", adminCreateCategoryHandler(svc.Catalog, logger))
			r.Put("/categories/{id}", adminUpdateCategoryHandler(svc.Catalog, logger))
			r.Delete("/categories/{id}", adminDeleteCategoryHandler(svc.Catalog, logger))

			r.Get("/orders", adminListOrdersHandler(svc.Orders, logger))
			r.Get("/orders/{id}", adminGetOrderHandler(svc.Orders, logger))
			r.Patch("/orders/{id}/status", adminUpdateOrderStatusHandler(svc.Orders, logger))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// ============================================================
// Probes
// ============================================================

func healthzHandler(upstreams map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		now := time.Now().UTC().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "naijastore-api", Status: "healthy", LastChecked: now},
		}

		names := make([]string, 0, len(upstreams))
		for name := range upstreams {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			start := time.Now()
			status := "healthy"
			if err := upstreams[name].Ping(ctx); err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name:        name,
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
