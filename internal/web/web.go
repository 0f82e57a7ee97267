// internal/web/web.go
//
// HTTP surface: public landing pages, tenant pages, and the admin screens.
//
// Context
// -------
// The hostname router runs first and rewrites tenant roots onto the
// internal paths served here:
//
//   /s/{subdomain}   – subdomain tenant page
//   /d/{domain}      – custom-domain tenant page
//
// Admin screens live under the paths chosen by the reserved-prefix profile
// (see Paths).  They render full pages on GET and answer form POSTs by
// re-rendering with a banner, so the UI works without JavaScript.
//
// Workflow
// --------
//   Handler → RequestID → Enrich → AccessLog → Security → [ForceHTTPS]
//           → Recoverer → routing.Middleware → chi routes
//
// Notes
// -----
// • List bodies are cached in the page LRU and dropped by the action layer
//   after every write.  They carry no per-request data; row buttons point
//   at page-level forms through the HTML form attribute.
// • Oxford commas, two spaces after periods.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taubermatt/platform/internal/action"
	"github.com/taubermatt/platform/internal/cache"
	"github.com/taubermatt/platform/internal/form"
	"github.com/taubermatt/platform/internal/middleware"
	"github.com/taubermatt/platform/internal/requestinfo"
	"github.com/taubermatt/platform/internal/routing"
	"github.com/taubermatt/platform/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// rowsKey is the single entry kept per list namespace.
const rowsKey = "rows"

// Paths are the admin mount points.  Dashboard is empty when the profile
// has no dashboard.
type Paths struct {
	Dashboard  string
	Subdomains string
	Domains    string
}

// PathsFor maps a reserved-prefix profile to its admin paths.  Unknown
// profiles fall back to the admin layout.
func PathsFor(profile string) Paths {
	if profile == routing.ProfileSplit {
		return Paths{Subdomains: "/subdomains", Domains: "/domains"}
	}
	return Paths{
		Dashboard:  "/admin",
		Subdomains: "/admin/subdomains",
		Domains:    "/admin/domains",
	}
}

// Config carries presentation settings.
type Config struct {
	RootDomain string
	Protocol   string
	Profile    string
	ForceHTTPS bool
}

// Deps are the collaborators the server calls into.  Pages, Limiter, and
// Health may be nil.
type Deps struct {
	Actions *action.Service
	Router  *routing.Router
	Pages   *cache.LRU
	CSRF    *form.Signer
	Limiter *middleware.RateLimiter
	Health  func(ctx context.Context) error
	Log     *zap.Logger
}

// Server renders every page.  Safe for concurrent use.
type Server struct {
	cfg   Config
	paths Paths
	deps  Deps
	views *view.Engine
	log   *zap.Logger
}

// New parses the embedded templates and wires deps.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Actions == nil || deps.Router == nil {
		return nil, errors.New("web: actions and router are required")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.CSRF == nil {
		s, err := form.NewSigner("")
		if err != nil {
			return nil, err
		}
		deps.CSRF = s
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "https"
	}

	views, err := view.New(templateFS, "templates", "layout.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:   cfg,
		paths: PathsFor(cfg.Profile),
		deps:  deps,
		views: views,
		log:   deps.Log,
	}, nil
}

// Paths returns the admin mount points in use.
func (s *Server) Paths() Paths { return s.paths }

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.routes()
	h = routing.Middleware(s.deps.Router)(h)
	h = chimw.Recoverer(h)
	if s.cfg.ForceHTTPS {
		h = middleware.ForceHTTPS(h)
	}
	h = middleware.Security(h)
	h = middleware.AccessLog(s.log)(h)
	h = requestinfo.Enrich(h)
	h = middleware.RequestID(h)
	return h
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(s.notFound)

	r.Get("/", s.home)
	r.Get("/s/{subdomain}", s.subdomainPage)
	r.Get("/d/{domain}", s.domainPage)
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.deps.CSRF.Protect)
		mutate := r.With(s.limit)

		if s.paths.Dashboard != "" {
			r.Get(s.paths.Dashboard, s.dashboard)
		}

		r.Get(s.paths.Subdomains, s.subdomains)
		mutate.Post(s.paths.Subdomains, s.createSubdomain)
		mutate.Post(s.paths.Subdomains+"/delete", s.deleteSubdomain)

		r.Get(s.paths.Domains, s.domains)
		mutate.Post(s.paths.Domains, s.createDomain)
		mutate.Post(s.paths.Domains+"/verify", s.verifyDomain)
		mutate.Post(s.paths.Domains+"/delete", s.deleteDomain)
		r.Get(s.paths.Domains+"/{domain}/setup", s.domainSetup)
		r.Get(s.paths.Domains+"/{domain}/verification", s.verificationJSON)
		r.Get(s.paths.Domains+"/{domain}/dns", s.dnsJSON)
	})
	return r
}

// limit applies the rate limiter when one is configured.
func (s *Server) limit(next http.Handler) http.Handler {
	if s.deps.Limiter == nil {
		return next
	}
	return s.deps.Limiter.Limit(next)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// rows returns the cached list body for ns, rendering it on a miss.
func (s *Server) rows(ns string, build func() (any, error)) (template.HTML, error) {
	if s.deps.Pages != nil {
		if b, ok := s.deps.Pages.Get(ns, rowsKey); ok {
			return template.HTML(b), nil
		}
	}
	data, err := build()
	if err != nil {
		return "", err
	}
	name := "subdomain_rows"
	if ns == action.PageDomains {
		name = "domain_rows"
	}
	html, err := s.views.RenderToString(name, data)
	if err != nil {
		return "", err
	}
	if s.deps.Pages != nil {
		s.deps.Pages.Add(ns, rowsKey, []byte(html))
	}
	return html, nil
}
