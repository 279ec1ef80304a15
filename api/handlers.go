package api

import (
	"time"
)

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(deps Dependencies, startupTime time.Time) *routeHandlers {
	return &routeHandlers{
		projectHandler: newProjectHandler(deps.Projects),
		deployHandler:  newDeployHandler(deps.Forwarder),
		healthHandler:  newHealthHandler(deps.Database, deps.Assets, startupTime),
	}
}
