package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bookstore/internal/analytics"
	"github.com/noah-isme/backend-bookstore/internal/auth"
	"github.com/noah-isme/backend-bookstore/internal/cart"
	"github.com/noah-isme/backend-bookstore/internal/catalog"
	"github.com/noah-isme/backend-bookstore/internal/checkout"
	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/config"
	"github.com/noah-isme/backend-bookstore/internal/health"
	"github.com/noah-isme/backend-bookstore/internal/obs"
	"github.com/noah-isme/backend-bookstore/internal/order"
	"github.com/noah-isme/backend-bookstore/internal/ratelimit"
	"github.com/noah-isme/backend-bookstore/internal/security"
	"github.com/noah-isme/backend-bookstore/internal/user"
	"github.com/noah-isme/backend-bookstore/internal/voucher"
	"github.com/noah-isme/backend-bookstore/internal/wishlist"
)

type routerDeps struct {
	cfg        *config.Config
	logger     zerolog.Logger
	health     health.Handler
	authMW     auth.Middleware
	global     func(http.Handler) http.Handler
	idem       common.Idem
	validateRL ratelimit.Handler
	auth       *auth.Handler
	users      *user.Handler
	catalog    *catalog.Handler
	vouchers   *voucher.Handler
	cart       *cart.Handler
	checkout   *checkout.Handler
	orders     *order.Handler
	ordersAdm  *order.AdminHandler
	wishlist   *wishlist.Handler
	analytics  *analytics.Handler
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.cfg
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if cfg.TracingEnabled {
		r.Use(obs.Tracing("http.server"))
	}
	if cfg.MetricsEnabled {
		metrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
		r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger, SlowThreshold: time.Second}.Middleware)
	r.Use(security.Headers{HSTS: cfg.IsProduction()}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	r.Get("/health/live", d.health.Live)
	r.Get("/health/ready", d.health.Ready)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	admin := auth.RequireRole(common.RoleAdmin)

	r.Route("/api/v1", func(v chi.Router) {
		if d.global != nil {
			v.Use(d.global)
		}
		v.Use(d.authMW.Authenticate)

		v.Post("/auth/register", d.auth.Register)
		v.Post("/auth/login", d.auth.Login)

		v.Get("/books", d.catalog.Books)
		v.Get("/books/{id}", d.catalog.Book)
		v.Get("/categories", d.catalog.Categories)

		v.Get("/vouchers", d.vouchers.Available)
		v.With(d.validateRL.Middleware).Post("/vouchers/validate", d.vouchers.Validate)

		v.Group(func(authR chi.Router) {
			authR.Use(d.authMW.RequireAuth)
			authR.Get("/users/me", d.auth.Me)

			authR.Route("/cart", func(c chi.Router) {
				c.Get("/", d.cart.Get)
				c.Delete("/", d.cart.Clear)
				c.Post("/items", d.cart.AddItem)
				c.Patch("/items/{bookId}", d.cart.UpdateItem)
				c.Delete("/items/{bookId}", d.cart.RemoveItem)
				c.Post("/voucher", d.cart.ApplyVoucher)
				c.Delete("/voucher", d.cart.RemoveVoucher)
			})

			authR.With(d.idem.Middleware).Post("/checkout", d.checkout.Checkout)

			authR.Get("/orders", d.orders.List)
			authR.Get("/orders/{id}", d.orders.Get)
			authR.Post("/orders/{id}/cancel", d.orders.Cancel)

			authR.Get("/wishlist", d.wishlist.List)
			authR.Get("/wishlist/{bookId}", d.wishlist.Check)
			authR.Post("/wishlist/{bookId}/toggle", d.wishlist.Toggle)
			authR.Delete("/wishlist/{bookId}", d.wishlist.Remove)
		})

		v.Route("/admin", func(a chi.Router) {
			a.Use(d.authMW.RequireAuth)
			a.Use(admin)

			a.Get("/users", d.users.List)
			a.Patch("/users/{id}/role", d.users.UpdateRole)

			a.Post("/books", d.catalog.Create)
			a.Put("/books/{id}", d.catalog.Update)
			a.Delete("/books/{id}", d.catalog.Delete)

			a.Get("/vouchers", d.vouchers.List)
			a.Post("/vouchers", d.vouchers.Create)
			a.Get("/vouchers/{id}", d.vouchers.Get)
			a.Put("/vouchers/{id}", d.vouchers.Update)
			a.Delete("/vouchers/{id}", d.vouchers.Delete)

			a.Get("/orders", d.ordersAdm.List)
			a.Get("/orders/{id}", d.ordersAdm.Get)
			a.Patch("/orders/{id}/status", d.ordersAdm.PatchStatus)

			a.Get("/dashboard", d.analytics.Dashboard)
			a.Get("/analytics/sales", d.analytics.Sales)
			a.Get("/analytics/top-books", d.analytics.TopBooks)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		common.JSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

// protectPprof puts basic auth in front of the profiler when a user is set.
func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
