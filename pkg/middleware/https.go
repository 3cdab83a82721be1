package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// RequireHTTPS rejects requests that did not arrive over TLS, directly or
// via a proxy that sets X-Forwarded-Proto. GET and HEAD requests are
// redirected to the https scheme instead.
func RequireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "HTTPS_REQUIRED",
			"message": "this endpoint requires HTTPS",
		})
	})
}
