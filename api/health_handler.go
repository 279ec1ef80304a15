package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rpupo63/portfolio-backend/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type healthHandler struct {
	responder   Responder
	logger      zerolog.Logger
	db          pinger
	assets      *storage.AssetStore
	startupTime time.Time
}

func newHealthHandler(db pinger, assets *storage.AssetStore, startupTime time.Time) healthHandler {
	logger := log.With().Str("handlerName", "healthHandler").Logger()

	return healthHandler{
		responder:   NewResponder(logger),
		logger:      logger,
		db:          db,
		assets:      assets,
		startupTime: startupTime,
	}
}

// root is the bare liveness probe.
// @Router / [get]
func (h healthHandler) root() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.responder.WriteJSON(w, MessageResponse{Success: true, Message: "API Working!"})
	}
}

// @Router /api/test [get]
func (h healthHandler) test() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.responder.WriteJSON(w, MessageResponse{Success: true, Message: "Backend is working!"})
	}
}

// health checks the database and the storage root
// @Summary Health check
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h healthHandler) health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:   "ok",
			Database: "ok",
			Storage:  "ok",
			Uptime:   time.Since(h.startupTime).Round(time.Second).String(),
		}
		status := http.StatusOK

		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error().Err(err).Msg("database ping failed")
			resp.Database = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		if err := h.assets.Root().Check(); err != nil {
			h.logger.Error().Err(err).Msg("storage root check failed")
			resp.Storage = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}

		h.responder.WriteJSONStatus(w, status, resp)
	}
}
