package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
)

// LongRunning gives a route its own deadline d instead of the router-wide
// timeout, and extends the connection's read and write deadlines to match so
// the server timeouts do not cut the request short.
func LongRunning(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			deadline := time.Now().Add(d)
			rc := http.NewResponseController(w)
			if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
				log.Printf("[HTTP] Failed to extend read deadline: %v", err)
			}
			if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
				log.Printf("[HTTP] Failed to extend write deadline: %v", err)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
