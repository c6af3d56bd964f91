package restapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// public wraps a read endpoint with caching headers and compression.
func public(cacheSeconds int, finalHandler http.HandlerFunc) http.Handler {
	return CompressionMiddleware(CacheControlMiddleware(cacheSeconds, finalHandler))
}

// management wraps a management endpoint with the shared rate limiter.
func management(api *RestAPI, finalHandler http.HandlerFunc) http.Handler {
	if api.rateLimiter == nil {
		return finalHandler
	}
	return api.rateLimiter(finalHandler)
}

// SetRoutes registers all endpoints on the mux.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ok", api.healthHandler)

	mux.Handle("GET /stops", public(0, api.stopsHandler))
	mux.Handle("GET /stops/{stop_id}/routes", public(60, api.stopRoutesHandler))
	mux.Handle("GET /stops/{stop_id}/arrivals", public(0, api.stopArrivalsHandler))

	mux.Handle("POST /management/gtfs/sync", management(api, api.syncHandler))
	mux.Handle("POST /management/gtfs/index-stoptimes", management(api, api.indexStopTimesHandler))
	mux.Handle("POST /management/gtfs/index-stops", management(api, api.indexStopsHandler))

	mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
}

// SetupAPIRoutes builds the router with the per-request middleware chain:
// request id, CORS, then metrics around the routed handlers.
func (api *RestAPI) SetupAPIRoutes() http.Handler {
	mux := http.NewServeMux()
	api.SetRoutes(mux)

	handler := api.MetricsMiddleware(mux)
	handler = NewCORSMiddleware(api.Config.AllowOrigin)(handler)
	return RequestIDMiddleware(handler)
}
