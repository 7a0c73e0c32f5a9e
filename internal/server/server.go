package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/plantfloor/lottrack/internal/modules/batches"
	"github.com/plantfloor/lottrack/internal/modules/lots"
	"github.com/plantfloor/lottrack/internal/modules/materials"
)

// Config holds server configuration
type Config struct {
	Port             int
	Log              zerolog.Logger
	DevMode          bool
	LotHandlers      *lots.Handlers
	BatchHandlers    *batches.Handlers
	MaterialHandlers *materials.Handlers
	SystemHandlers   *SystemHandlers
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	lotsH     *lots.Handlers
	batchesH  *batches.Handlers
	materialH *materials.Handlers
	systemH   *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		lotsH:     cfg.LotHandlers,
		batchesH:  cfg.BatchHandlers,
		materialH: cfg.MaterialHandlers,
		systemH:   cfg.SystemHandlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.systemH.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemH.HandleSystemStatus)
			r.Get("/databases", s.systemH.HandleDatabaseStats)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/snapshot-rebuild", s.systemH.HandleTriggerSnapshotRebuild)
			r.Post("/usage-stats", s.systemH.HandleTriggerUsageStats)
			r.Post("/daily-maintenance", s.systemH.HandleTriggerDailyMaintenance)
			r.Post("/weekly-maintenance", s.systemH.HandleTriggerWeeklyMaintenance)
			r.Get("/history/{job}", s.systemH.HandleJobHistory)
		})

		r.Route("/lots", func(r chi.Router) {
			r.Post("/transactions", s.lotsH.HandleCreateTransaction)
			r.Get("/{stockcode}", s.lotsH.HandleAnalyzeStockcode)
			r.Get("/{stockcode}/{lot}", s.lotsH.HandleAnalyzeLot)
			r.Get("/{stockcode}/{lot}/usage", s.lotsH.HandleUsageTrace)
		})

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", s.batchesH.HandleCreateBatch)
			r.Get("/rolling", s.batchesH.HandleRollingWeeks)
			r.Get("/labor", s.batchesH.HandleLaborAnalysis)
			r.Get("/{comp}/daily", s.batchesH.HandleMadeByDate)
		})

		r.Route("/materials", func(r chi.Router) {
			r.Get("/statistics", s.materialH.HandleUsageStatistics)
			r.Get("/bom/{comp}", s.materialH.HandleGetBOM)
			r.Get("/{stockcode}/usage", s.materialH.HandleUsage)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
