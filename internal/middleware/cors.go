package middleware

import (
	"net/http"
	"strings"
)

// CORS allows read-only cross-origin access from the configured origins.
// origins is "*" or a comma-separated list.
func CORS(origins string) func(http.Handler) http.Handler {
	allowList := splitOrigins(origins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowed := allowOrigin(r.Header.Get("Origin"), allowList); allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, strings.TrimSuffix(o, "/"))
		}
	}
	return out
}

// allowOrigin returns the value for Access-Control-Allow-Origin, or "" when
// reqOrigin is not allowed.
func allowOrigin(reqOrigin string, allowList []string) string {
	for _, o := range allowList {
		if o == "*" {
			return "*"
		}
		if reqOrigin != "" && reqOrigin == o {
			return reqOrigin
		}
	}
	return ""
}
