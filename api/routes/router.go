package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tastebud-backend/api/controllers"
	"github.com/angelmondragon/tastebud-backend/api/middleware"
	"github.com/angelmondragon/tastebud-backend/internal/cart"
	"github.com/angelmondragon/tastebud-backend/internal/checkout"
	"github.com/angelmondragon/tastebud-backend/internal/loyalty"
	"github.com/angelmondragon/tastebud-backend/internal/menu"
	"github.com/angelmondragon/tastebud-backend/internal/observer"
	"github.com/angelmondragon/tastebud-backend/internal/orders"
	"github.com/angelmondragon/tastebud-backend/pkg/config"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	"github.com/angelmondragon/tastebud-backend/pkg/redis"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer

	Carts    *cart.Service
	Catalog  menu.Catalog
	Checkout checkout.Service
	Orders   orders.Service
	Loyalty  loyalty.Service
	Hub      *observer.Hub
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	idem := middleware.Idempotency(deps.Idempotency, logg)
	cartHandlers := controllers.NewCartHandlers(deps.Carts, deps.Catalog, deps.Loyalty, logg)
	orderHandlers := controllers.NewOrderHandlers(deps.Orders, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleCustomer))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandlers.Get)
				r.Delete("/", cartHandlers.Clear)
				r.Post("/items", cartHandlers.AddItem)
				r.Patch("/items/{itemID}", cartHandlers.UpdateItem)
				r.Delete("/items/{itemID}", cartHandlers.RemoveItem)
				r.Post("/coupon", cartHandlers.ApplyCoupon)
				r.Delete("/coupon", cartHandlers.RemoveCoupon)
				r.Post("/loyalty", cartHandlers.ApplyLoyalty)
				r.Delete("/loyalty", cartHandlers.RemoveLoyalty)
			})

			r.With(idem).Post("/checkout", controllers.Checkout(deps.Carts, deps.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orderHandlers.ListMine)
				r.Get("/{orderID}", orderHandlers.GetMine)
				r.With(idem).Post("/{orderID}/cancel", orderHandlers.CancelMine)
				r.With(idem).Patch("/{orderID}/details", orderHandlers.UpdateMine)
				r.Get("/{orderID}/events", controllers.StreamCustomerOrder(deps.Hub, logg))
			})

			r.Get("/loyalty/balance", controllers.LoyaltyBalance(deps.Loyalty, logg))
		})

		r.Route("/restaurant", func(r chi.Router) {
			r.Use(
				middleware.RequireRole(logg, enums.MemberRoleRestaurant),
				middleware.RequireRestaurant(logg),
			)
			r.Get("/orders", orderHandlers.ListRestaurant)
			r.With(idem).Post("/orders/{orderID}/status", orderHandlers.SetStatus)
			r.Get("/orders/events", controllers.StreamRestaurantOrders(deps.Hub, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleAdmin))
			r.With(idem).Post("/orders/{orderID}/status", orderHandlers.SetStatus)
			r.With(idem).Post("/orders/{orderID}/loyalty/settle", controllers.SettleLoyalty(deps.Checkout, logg))
		})
	})

	return r
}
