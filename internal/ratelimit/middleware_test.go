package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

type stubAllower struct {
	decisions []Decision
	err       error
	keys      []string
}

func (s *stubAllower) Allow(ctx context.Context, key string) (Decision, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return Decision{}, s.err
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	reset := time.Now().Add(30 * time.Second)
	stub := &stubAllower{decisions: []Decision{
		{Allowed: true, Limit: 1, Remaining: 0, ResetAt: reset},
		{Allowed: false, Limit: 1, Remaining: 0, ResetAt: reset},
	}}
	h := Handler{Limiter: stub, Key: ByIP("voucher")}.Middleware(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/vouchers/validate", nil)
	req.RemoteAddr = "10.0.0.7:5555"

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Contains(t, rr.Body.String(), codeRateLimited)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.Equal(t, []string{"voucher:10.0.0.7", "voucher:10.0.0.7"}, stub.keys)
}

func TestHandlerMiddlewareFailsOpen(t *testing.T) {
	stub := &stubAllower{err: errors.New("redis down")}
	h := Handler{Limiter: stub, Key: ByIP("x")}.Middleware(okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestGlobalLimiter(t *testing.T) {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: "test", CleanUpInterval: time.Minute})
	mw, err := Global(store, "2-M", zerolog.Nop())
	require.NoError(t, err)
	h := mw(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	_, err = Global(store, "nonsense", zerolog.Nop())
	require.Error(t, err)
}
