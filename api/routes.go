package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpupo63/portfolio-backend/storage"
)

// setupPublicRoutes sets up liveness, health, metrics and the stored image files
func setupPublicRoutes(r chi.Router, handlers *routeHandlers, assets *storage.AssetStore) {
	r.Get("/", handlers.healthHandler.root())
	r.Get("/health", handlers.healthHandler.health())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Method(http.MethodGet, "/uploads/{filename}", assets.Handler())
	r.Method(http.MethodHead, "/uploads/{filename}", assets.Handler())
}

// setupAPIRoutes sets up the project and deploy endpoints; mutations go through limit
func setupAPIRoutes(r chi.Router, handlers *routeHandlers, limit func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/test", handlers.healthHandler.test())

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", handlers.projectHandler.getAllProjects())
			r.Get("/{projectID}", handlers.projectHandler.getProject())

			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/", handlers.projectHandler.createProject())
				r.Put("/{projectID}", handlers.projectHandler.updateProject())
				r.Delete("/{projectID}", handlers.projectHandler.deleteProject())
			})
		})

		r.With(limit).Post("/deploy", handlers.deployHandler.deploy())
	})
}
