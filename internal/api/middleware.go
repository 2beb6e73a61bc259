// Package api implements the blogger REST API using chi.
package api

import (
	"crypto/subtle"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/skyboj/obsidian-ai-blogger/internal/ratelimit"
)

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			got, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Limiter admits or rejects a request for a client key.
type Limiter interface {
	Allow(key int64) ratelimit.Decision
}

// RateLimitMiddleware counts every request against key and answers 429 with
// Retry-After once a window is full. onReject may be nil.
func RateLimitMiddleware(l Limiter, key int64, onReject func(reason string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(key)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			if onReject != nil {
				onReject(d.Reason)
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.ResetIn.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, errResponse{
				Error: fmt.Sprintf("rate limit exceeded, try again in %s", ratelimit.FormatWaitTime(d.ResetIn)),
				Kind:  d.Reason,
			})
		})
	}
}
