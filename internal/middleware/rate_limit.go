package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/set-night/adbazaar/internal/config"
)

// RateLimitAI limits generator calls per user and endpoint.
func RateLimitAI() func(http.Handler) http.Handler {
	return httprate.Limit(config.RateLimitAI, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByEndpoint, keyByUser),
		httprate.WithLimitHandler(limited),
	)
}

// RateLimitAuth limits login and registration attempts per client IP.
func RateLimitAuth() func(http.Handler) http.Handler {
	return httprate.Limit(config.RateLimitAuth, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(limited),
	)
}

func keyByUser(r *http.Request) (string, error) {
	if u := GetUser(r.Context()); u != nil {
		return u.ID.String(), nil
	}
	return httprate.KeyByIP(r)
}

func limited(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusTooManyRequests, "too many requests, slow down")
}
