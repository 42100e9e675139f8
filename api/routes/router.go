package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-inventory/api/controllers"
	cartcontrollers "github.com/angelmondragon/packfinderz-inventory/api/controllers/cart"
	"github.com/angelmondragon/packfinderz-inventory/api/middleware"
	"github.com/angelmondragon/packfinderz-inventory/internal/cart"
	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	product "github.com/angelmondragon/packfinderz-inventory/internal/products"
	"github.com/angelmondragon/packfinderz-inventory/internal/variants"
	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	pkgredis "github.com/angelmondragon/packfinderz-inventory/pkg/redis"
)

// Services groups what the HTTP surface calls into. Idempotency and the
// readiness pingers are optional.
type Services struct {
	Inventory   inventory.Service
	Ledger      inventory.Ledger
	Products    product.Service
	Variants    variants.Service
	Carts       cart.Service
	Idempotency pkgredis.IdempotencyStore
	Pingers     map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, svc.Pingers))
	})
	if svc.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if svc.Idempotency != nil {
			r.Use(middleware.Idempotency(svc.Idempotency, logg))
		}

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/inconsistent", controllers.InventoryInconsistent(svc.Ledger, logg))
			r.Route("/{entityId}", func(r chi.Router) {
				r.Get("/", controllers.InventoryLevel(svc.Inventory, logg))
				r.Post("/check", controllers.InventoryCheck(svc.Inventory, logg))
				r.Post("/reserve", controllers.InventoryReserve(svc.Inventory, logg))
				r.Post("/commit", controllers.InventoryCommit(svc.Inventory, logg))
				r.Post("/release", controllers.InventoryRelease(svc.Inventory, logg))
				r.Put("/total", controllers.InventoryAdjustTotal(svc.Inventory, logg))
				r.Put("/tracking", controllers.InventorySetTracking(svc.Inventory, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(svc.Products, logg))
			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", controllers.GetProduct(svc.Products, logg))
				r.Put("/tracking", controllers.SetProductTracking(svc.Products, logg))
				r.Post("/variants", controllers.ConfigureVariants(svc.Variants, logg))
				r.Get("/combinations", controllers.ListCombinations(svc.Variants, logg))
				r.Patch("/combinations", controllers.UpdateCombinations(svc.Variants, logg))
				r.Patch("/combinations/{combinationId}", controllers.UpdateCombination(svc.Variants, logg))
			})
		})

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", cartcontrollers.CartCreate(svc.Carts, logg))
			r.Route("/{cartId}", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(svc.Carts, logg))
				r.Post("/items", cartcontrollers.CartAddItem(svc.Carts, logg))
				r.Post("/start-new", cartcontrollers.CartStartNew(svc.Carts, logg))
				r.Post("/reserve", cartcontrollers.CartReserve(svc.Carts, logg))
				r.Post("/release", cartcontrollers.CartRelease(svc.Carts, logg))
			})
		})
	})

	return r
}
