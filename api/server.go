package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rpupo63/portfolio-backend/config"
	"github.com/rpupo63/portfolio-backend/database"
	"github.com/rpupo63/portfolio-backend/deploy"
	"github.com/rpupo63/portfolio-backend/services"
	"github.com/rpupo63/portfolio-backend/storage"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators the HTTP layer is built on. main owns their lifecycle.
type Dependencies struct {
	Database  database.Database
	Projects  *services.ProjectService
	Assets    *storage.AssetStore
	Forwarder deploy.Forwarder
}

type Server struct {
	*http.Server
	startupTime time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) (Server, error) {
	address := fmt.Sprintf("0.0.0.0:%s", cfg.Port) // Bind to 0.0.0.0 for external access

	startupTime := time.Now()

	router, err := newRouter(deps, withConfig(cfg), withStartupTime(startupTime))
	if err != nil {
		return Server{}, err
	}

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return Server{server, startupTime}, nil
}

type router struct {
	config      *config.Config
	startupTime time.Time
}

func withConfig(c *config.Config) func(*router) {
	return func(r *router) {
		r.config = c
	}
}

func withStartupTime(startupTime time.Time) func(*router) {
	return func(r *router) {
		r.startupTime = startupTime
	}
}

func newRouter(deps Dependencies, opts ...func(*router)) (*chi.Mux, error) {
	router := router{config: &config.Config{}, startupTime: time.Now()}
	for _, opt := range opts {
		opt(&router)
	}
	cfg := router.config

	mutationLimit, err := newRateLimiter(cfg.Server.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT %q: %w", cfg.Server.RateLimit, err)
	}

	chiRouter := chi.NewRouter()
	chiRouter.Use(LogInternalServerErrors)
	chiRouter.Use(PrometheusMiddleware)
	chiRouter.Use(ColoredHTTPLoggingMiddleware)
	chiRouter.Use(newSecure(cfg.IsDevelopment()))
	chiRouter.Use(CORSCheckMiddleware(cfg.CORS.Origins, cfg.CORS.Suffixes))
	chiRouter.Use(newCORS(cfg.CORS.Origins, cfg.CORS.Suffixes))
	chiRouter.Use(LimitRequestBody(maxRequestBodyBytes))

	handlers := initializeHandlers(deps, router.startupTime)

	setupPublicRoutes(chiRouter, handlers, deps.Assets)
	setupAPIRoutes(chiRouter, handlers, mutationLimit)

	return chiRouter, nil
}

func (s Server) Start(errChannel chan<- error) {
	log.Info().Msgf("Server started on: %s", s.Addr)
	errChannel <- s.ListenAndServe()
}

func (s Server) ShutdownGracefully(timeout time.Duration) {
	log.Info().Msg("Gracefully shutting down...")

	gracefullCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(gracefullCtx); err != nil {
		log.Error().Msgf("Error shutting down the server: %v", err)
	} else {
		log.Info().Msg("HttpServer gracefully shut down")
	}
}
