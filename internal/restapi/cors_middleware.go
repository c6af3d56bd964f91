package restapi

import "net/http"

// NewCORSMiddleware creates CORS middleware for the configured origin.
// "*" allows any origin; an empty origin disables CORS headers entirely.
// The API is read-only for browsers, so only GET and the accept header are
// offered.
func NewCORSMiddleware(allowOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowOrigin != "" && origin != "" {
				if allowOrigin == "*" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				} else if origin == allowOrigin {
					w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET")
				w.Header().Set("Access-Control-Allow-Headers", "accept")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
