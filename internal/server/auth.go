package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth guards the API with a static bearer token. A missing or
// malformed Authorization header gets 401; a well-formed header with the
// wrong token gets 403. In dev mode with no token configured the check is
// skipped entirely.
func BearerAuth(token string, devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" && devMode {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				http.Error(w, "malformed authorization header", http.StatusUnauthorized)
				return
			}

			presented := strings.TrimPrefix(header, prefix)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				http.Error(w, "invalid token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
