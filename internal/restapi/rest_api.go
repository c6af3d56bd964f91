// Package restapi is the HTTP surface: stop lookup, per-stop routes and
// arrivals, and the management endpoints that trigger ingest and index
// rebuilds.
package restapi

import (
	"net/http"

	"waitemata.arrivals.nz/internal/app"
)

type RestAPI struct {
	*app.Application
	rateLimiter func(http.Handler) http.Handler
}

// NewRestAPI creates a RestAPI with the shared management rate limiter.
func NewRestAPI(app *app.Application) *RestAPI {
	return &RestAPI{
		Application: app,
		rateLimiter: NewRateLimitMiddleware(app.Config.RateLimit),
	}
}
