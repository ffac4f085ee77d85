package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/noah-isme/backend-bookstore/internal/common"
)

const codeRateLimited = "RATE_LIMITED"

// Allower decides whether a keyed request may proceed.
type Allower interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Handler enforces a keyed limit before delegating to the next handler.
// Limiter failures are logged and the request is let through.
type Handler struct {
	Limiter Allower
	Key     func(*http.Request) string
	Logger  zerolog.Logger
}

// Middleware implements the chi middleware signature.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := h.Key(r)
		d, err := h.Limiter.Allow(r.Context(), key)
		if err != nil {
			h.Logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		writeHeaders(w, int64(d.Limit), int64(d.Remaining), d.ResetAt.Unix())
		if !d.Allowed {
			retry := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 0)))
			tooMany(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ByIP keys limits on the client address, optionally under a scope.
func ByIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return scope + ":" + common.ClientIP(r)
	}
}

// Global builds the per-IP fixed window middleware applied to every route.
// rate uses the limiter format, for example "300-M".
func Global(store limiter.Store, rate string, logger zerolog.Logger) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	mw := stdlib.NewMiddleware(limiter.New(store, parsed),
		stdlib.WithKeyGetter(ByIP("global")),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			tooMany(w)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error().Err(err).Msg("global rate limiter failed")
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
		}),
	)
	return mw.Handler, nil
}

func writeHeaders(w http.ResponseWriter, limit, remaining, reset int64) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
}

func tooMany(w http.ResponseWriter) {
	common.JSONError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests, slow down", nil)
}
