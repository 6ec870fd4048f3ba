package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dcastella/fabrica-backend/api/controllers"
	"github.com/dcastella/fabrica-backend/api/middleware"
	"github.com/dcastella/fabrica-backend/internal/clients"
	"github.com/dcastella/fabrica-backend/internal/locations"
	"github.com/dcastella/fabrica-backend/internal/materials"
	"github.com/dcastella/fabrica-backend/internal/processes"
	"github.com/dcastella/fabrica-backend/internal/products"
	"github.com/dcastella/fabrica-backend/pkg/config"
	"github.com/dcastella/fabrica-backend/pkg/logger"
	pkgredis "github.com/dcastella/fabrica-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	health map[string]controllers.Pinger,
	idempotencyStore pkgredis.IdempotencyStore,
	metricsHandler http.Handler,
	productService products.Service,
	materialService materials.Service,
	processService processes.Service,
	clientService clients.Service,
	locationService locations.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, health))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(productService, logg))
			r.Get("/{productId}", controllers.GetProduct(productService, logg))
			r.Patch("/{productId}", controllers.UpdateProduct(productService, logg))
			r.Delete("/{productId}", controllers.DeleteProduct(productService, logg))
		})

		r.Route("/materials", func(r chi.Router) {
			r.Get("/", controllers.MaterialList(materialService, logg))
			r.Post("/", controllers.MaterialCreate(materialService, logg))
			r.Get("/{materialId}", controllers.MaterialGet(materialService, logg))
			r.Patch("/{materialId}", controllers.MaterialUpdate(materialService, logg))
			r.Delete("/{materialId}", controllers.MaterialDelete(materialService, logg))
		})

		r.Route("/processes", func(r chi.Router) {
			r.Get("/", controllers.ProcessList(processService, logg))
			r.Post("/", controllers.ProcessCreate(processService, logg))
			r.Get("/{processId}", controllers.ProcessGet(processService, logg))
			r.Patch("/{processId}", controllers.ProcessUpdate(processService, logg))
			r.Delete("/{processId}", controllers.ProcessDelete(processService, logg))
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", controllers.ClientList(clientService, logg))
			r.Post("/", controllers.ClientCreate(clientService, logg))
			r.Get("/{clientId}", controllers.ClientGet(clientService, logg))
			r.Patch("/{clientId}", controllers.ClientUpdate(clientService, logg))
			r.Delete("/{clientId}", controllers.ClientDelete(clientService, logg))
		})

		r.Route("/locations", func(r chi.Router) {
			r.Get("/", controllers.LocationList(locationService, logg))
			r.Post("/", controllers.LocationCreate(locationService, logg))
			r.Get("/{locationId}", controllers.LocationGet(locationService, logg))
			r.Patch("/{locationId}", controllers.LocationUpdate(locationService, logg))
			r.Delete("/{locationId}", controllers.LocationDelete(locationService, logg))
		})
	})

	return r
}
