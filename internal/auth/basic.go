// Package auth provides HTTP basic authentication for the payment endpoints.
package auth

import (
	"crypto/subtle"
	"net/http"

	apierrors "github.com/tingoai/payment-gateway/internal/errors"
)

// Config holds basic auth settings. When disabled the middleware passes every
// request through.
type Config struct {
	Enabled  bool
	Username string
	Password string
}

// BasicAuth enforces HTTP basic authentication with constant-time credential
// comparison.
func BasicAuth(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || !credentialsMatch(username, cfg.Username) || !credentialsMatch(password, cfg.Password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="payment-gateway"`)
				apierrors.WriteSimpleError(w, apierrors.ErrCodeUnauthorized, "Invalid or missing credentials")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func credentialsMatch(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
