package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
)

// SecretMiddleware admits only requests whose header carries secret.
// An empty secret rejects everything.
func SecretMiddleware(header, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.Log.Warnw("shared secret mismatch", "request_id", RequestIDFromContext(r.Context()), "uri", r.RequestURI)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
