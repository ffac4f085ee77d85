package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bookstore/internal/auth"
	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/config"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/health"
)

type userStore map[string]db.User

func (u userStore) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	row := db.User{ID: uuid.New(), Name: arg.Name, Email: arg.Email, PasswordHash: arg.PasswordHash, Role: arg.Role}
	u[arg.Email] = row
	return row, nil
}

func (u userStore) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	row, ok := u[email]
	if !ok {
		return db.User{}, db.ErrNotFound
	}
	return row, nil
}

func (u userStore) GetUserByID(_ context.Context, id uuid.UUID) (db.User, error) {
	for _, row := range u {
		if row.ID == id {
			return row, nil
		}
	}
	return db.User{}, db.ErrNotFound
}

type okChecker struct{}

func (okChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (okChecker) PingRedis(context.Context, time.Duration) error { return nil }

func testRouter(t *testing.T) (http.Handler, func(role string) string) {
	t.Helper()
	users := userStore{}
	svc, err := auth.NewService(auth.Config{Queries: users, Secret: "router-secret"})
	require.NoError(t, err)

	token := func(role string) string {
		hash, err := argon2id.CreateHash("correct horse", argon2id.DefaultParams)
		require.NoError(t, err)
		email := role + "@books.test"
		users[email] = db.User{ID: uuid.New(), Name: role, Email: email, PasswordHash: hash, Role: role}
		res, err := svc.Login(context.Background(), email, "correct horse")
		require.NoError(t, err)
		return res.AccessToken
	}

	h := newRouter(routerDeps{
		cfg:    &config.Config{BodyLimitBytes: 1 << 20},
		logger: zerolog.Nop(),
		health: health.Handler{Checker: okChecker{}},
		authMW: auth.Middleware{Service: svc},
		auth:   &auth.Handler{Service: svc, Logger: zerolog.Nop()},
	})
	return h, token
}

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthAndHeaders(t *testing.T) {
	h, _ := testRouter(t)

	rr := serve(h, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = serve(h, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterProtectsRoutes(t *testing.T) {
	h, token := testRouter(t)
	customer := token(common.RoleCustomer)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"cart needs auth", http.MethodGet, "/api/v1/cart", "", http.StatusUnauthorized},
		{"checkout needs auth", http.MethodPost, "/api/v1/checkout", "", http.StatusUnauthorized},
		{"orders needs auth", http.MethodGet, "/api/v1/orders", "", http.StatusUnauthorized},
		{"admin needs auth", http.MethodGet, "/api/v1/admin/dashboard", "", http.StatusUnauthorized},
		{"admin needs admin role", http.MethodGet, "/api/v1/admin/dashboard", customer, http.StatusForbidden},
		{"admin voucher writes need admin role", http.MethodPost, "/api/v1/admin/vouchers", customer, http.StatusForbidden},
		{"garbage token", http.MethodGet, "/api/v1/users/me", "not-a-jwt", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(h, tc.method, tc.path, tc.token)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
		})
	}

	rr := serve(h, http.MethodGet, "/api/v1/users/me", customer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), "customer@books.test")
}

func TestProtectPprof(t *testing.T) {
	h := protectPprof(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "ops", "s3cret")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.SetBasicAuth("ops", "s3cret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
