package middleware

import (
	"net/http"
	"strings"
)

// The dashboard is the only browser consumer, so the method list covers
// exactly its surface.
const (
	corsHeaders = "Authorization, Content-Type"
	corsMethods = "GET, POST, PUT, OPTIONS"
	corsMaxAge  = "600"
)

// CORS answers cross-origin requests from the allowlisted dashboard origins.
// An entry of "*" allows any origin; unknown origins get no CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny, allowed := buildAllowlist(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			permitted := origin != "" && (allowAny || allowed[origin])

			if permitted {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}

			if isPreflight(r) {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func buildAllowlist(origins []string) (allowAny bool, allowed map[string]bool) {
	allowed = make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			allowAny = true
		default:
			allowed[o] = true
		}
	}
	return allowAny, allowed
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}
