package restapi

import (
	"net/http"

	"golang.org/x/time/rate"
)

// NewRateLimitMiddleware creates a shared token-bucket limiter allowing
// requestsPerSecond sustained requests with an equal burst. The management
// endpoints kick off downloads and index rebuilds, so excess requests are
// rejected rather than queued. A non-positive rate disables limiting.
func NewRateLimitMiddleware(requestsPerSecond int) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
