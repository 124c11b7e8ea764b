package middleware

import (
	"net/http"
	"strings"
)

// CORS adds Access-Control headers for allowed origins and short-circuits preflight requests.
// Credentials are only allowed for explicitly listed origins; browsers refuse them with "*".
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	allowAll := false
	normalized := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		normalized = append(normalized, strings.ToLower(strings.TrimSuffix(origin, "/")))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			listed := containsOrigin(normalized, origin)
			if listed || allowAll {
				h := w.Header()
				if listed {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
				} else {
					h.Set("Access-Control-Allow-Origin", "*")
				}
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
				h.Set("Access-Control-Expose-Headers", RequestIDHeader)
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func containsOrigin(allowed []string, origin string) bool {
	origin = strings.ToLower(origin)
	for _, candidate := range allowed {
		if candidate == origin {
			return true
		}
	}
	return false
}
