package routing

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/taubermatt/platform/internal/middleware"
)

type ctxKey struct{}

// WithDecision stores d on ctx.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// FromContext returns the decision stored by Middleware.  ok is false when
// the middleware has not run.
func FromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(ctxKey{}).(Decision)
	return d, ok
}

// Middleware classifies each request with rt.  Redirects are answered with
// 307 to "/".  Rewrites swap the path before calling next, keeping the
// query string.  Every forwarded request carries its Decision.
func Middleware(rt *Router) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := rt.Classify(r.Context(), r.Host, r.URL.Path)
			middleware.AddLogField(r.Context(),
				zap.String("route_class", d.Class.String()),
				zap.String("route_kind", d.Kind.String()),
				zap.String("tenant", d.Tenant))

			if d.Kind == Redirect {
				http.Redirect(w, r, d.Target, http.StatusTemporaryRedirect)
				return
			}

			r = r.WithContext(WithDecision(r.Context(), d))

			if d.Kind == Rewrite {
				u := *r.URL
				original := u.Path
				u.Path = d.Target
				u.RawPath = ""
				r.URL = &u
				r.RequestURI = u.RequestURI()

				rt.log.Debug("host rewrite",
					zap.String("host", d.Hostname),
					zap.String("from", original),
					zap.String("to", d.Target))
			}

			next.ServeHTTP(w, r)
		})
	}
}
