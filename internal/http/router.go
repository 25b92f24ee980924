// Package http exposes the services as a JSON REST API.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Services bundles what the router dispatches to. Assistant may be nil, in
// which case the assistant route is not mounted.
type Services struct {
	Auth      AuthService
	Catalog   CatalogService
	Cart      CartService
	Orders    OrderService
	Dashboard DashboardService
	Assistant Assistant
	Store     Pinger
}

func NewRouter(svc Services, cfg RouterConfig, log *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20 // 1MB
	}

	authHandler := NewAuthHandler(svc.Auth, log)
	catalogHandler := NewCatalogHandler(svc.Catalog, log)
	cartHandler := NewCartHandler(svc.Cart, log)
	ordersHandler := NewOrdersHandler(svc.Orders, log)
	dashboardHandler := NewDashboardHandler(svc.Dashboard, log)
	healthHandler := NewHealthHandler(svc.Store)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MaxBodyBytes(cfg.MaxBodyBytes))

	r.Get("/health", healthHandler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/locations", catalogHandler.Locations)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Get("/shops", catalogHandler.ListShops)
		r.Get("/shops/{shop_id}/products", catalogHandler.ListProducts)
		r.Get("/products/search", catalogHandler.SearchProducts)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(svc.Auth))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Post("/shops", catalogHandler.CreateShop)
			r.Get("/shops/my", catalogHandler.MyShops)
			r.Patch("/shops/{shop_id}/open", catalogHandler.SetShopOpen)
			r.Post("/shops/{shop_id}/products", catalogHandler.CreateProduct)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/", cartHandler.AddItem)
				r.Delete("/{item_id}", cartHandler.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordersHandler.PlaceOrder)
				r.Get("/", ordersHandler.ListOrders)
				r.Get("/{order_id}", ordersHandler.GetOrder)
				r.Patch("/{order_id}/status", ordersHandler.UpdateStatus)
				r.Post("/{order_id}/claim", ordersHandler.Claim)
				r.Get("/{order_id}/history", ordersHandler.History)
			})

			r.Get("/dashboard/stats", dashboardHandler.Stats)
			r.Get("/dashboard/view", dashboardHandler.View)

			if svc.Assistant != nil {
				r.Post("/ai/assistant", NewAssistantHandler(svc.Assistant, log).Ask)
			}
		})
	})

	return otelhttp.NewHandler(r, "orderbuddy-api")
}
