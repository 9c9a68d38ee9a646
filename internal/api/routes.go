package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/engine"
	"github.com/yegors/mp-director/internal/storage/sqlite"
	"github.com/yegors/mp-director/internal/websocket"
	"github.com/yegors/mp-director/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(eng *engine.Engine, storage *sqlite.AdvisoryStorage, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(eng, storage, wsServer, cfg, log),
		middleware: NewMiddleware(log),
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Aircraft routes
		router.Get("/aircraft", r.handler.GetAllAircraft)
		router.Get("/aircraft/{callsign}", r.handler.GetAircraftByCallsign)

		// Sequencing routes
		router.Get("/schedule", r.handler.GetSchedule)
		router.Get("/conflicts", r.handler.GetConflicts)
		router.Get("/advisories", r.handler.GetAdvisories)
		router.Get("/slots", r.handler.GetSlotHistory)
		router.Get("/mp-distances", r.handler.GetMPDistances)

		// WebSocket route
		router.Get("/ws", r.handler.HandleWebSocket)

		// Health check
		router.Get("/health", r.handler.GetHealth)

		// Configuration
		router.Get("/config", r.handler.GetConfig)
	})

	return router
}
