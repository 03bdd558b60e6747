package route

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"detectserver/internal/config"
	"detectserver/internal/handler"
	"detectserver/internal/logger"
	"detectserver/internal/metrics"
	"detectserver/internal/middleware"
	"detectserver/internal/service"
	viewers "detectserver/internal/service/websocket"
	"detectserver/internal/telemetry"
)

// Dependencies are the services the routes are built on. Metrics and Hub
// may be nil.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Manager  *service.Manager
	Metadata *service.MetadataProvider
	Metrics  *metrics.Metrics
	Hub      *viewers.HubService
}

// SetupRoutes registers every endpoint on a chi router.
func SetupRoutes(deps Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(telemetry.Middleware(cfg.ServiceName))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/", handler.HomeHandler())
	r.Get("/health", handler.HealthHandler(cfg.DetectorBackend, deps.Manager, hubCounter(deps.Hub)))
	r.Get("/metadata", handler.MetadataHandler(deps.Metadata))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
		if cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		}
		r.Post("/predict", handler.PredictHandler(deps.Manager, cfg.MaxUploadBytes, deps.Logger))
	})

	r.Route("/api", func(r chi.Router) {
		if deps.Hub != nil {
			r.Get("/view", handler.ViewWebsocketHandler(deps.Hub, deps.Logger))
		}
		journal := deps.Manager.Journal()
		r.Get("/predictions", handler.RecentPredictionsHandler(journal, deps.Logger))
		r.Get("/predictions/stats", handler.PredictionStatsHandler(journal, deps.Logger))
		r.Get("/predictions/{id}", handler.PredictionHandler(journal, deps.Logger))
	})

	r.Get("/logs/{level}", handler.ShowLogsHandler(deps.Logger))
	r.Post("/logs/{level}/clear", handler.ClearLogsHandler(deps.Logger))

	return r
}

// hubCounter avoids handing a typed nil pointer to the interface.
func hubCounter(hub *viewers.HubService) handler.ViewerCounter {
	if hub == nil {
		return nil
	}
	return hub
}
