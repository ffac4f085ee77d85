package obs

import (
	"context"

	"github.com/go-chi/chi/v5"
)

// routePatternKey is the context key storing an explicitly set route pattern.
type routePatternKey struct{}

// WithRoutePattern stores the matched router pattern on the context. Tests use
// it to label requests that never pass through a chi router.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the explicit pattern when present, otherwise
// the pattern chi has matched so far. Call it after the handler chain returns
// to get the full pattern.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
