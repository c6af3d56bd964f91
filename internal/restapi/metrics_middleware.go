package restapi

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsMiddleware records request counts and latencies, labelled by route
// pattern rather than raw path to keep the label cardinality bounded.
func (api *RestAPI) MetricsMiddleware(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		mux.ServeHTTP(wrapped, r)

		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		api.Metrics.HTTPRequestsTotal.
			WithLabelValues(r.Method, pattern, strconv.Itoa(wrapped.statusCode)).Inc()
		api.Metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
