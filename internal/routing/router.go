// internal/routing/router.go
//
// Hostname classification for every inbound request.
//
// Context
// -------
// One binary serves the platform's own pages, every tenant subdomain, and
// every verified custom domain.  Before any handler runs, the router looks
// at the Host header and decides which of the three the request is for:
//
//   • Subdomain      – <tenant>.<root>, <tenant>---<branch><preview-suffix>,
//                      or <tenant>.localhost during development.
//   • Custom domain  – any other host with a verified domain record.
//   • Root           – everything else, including <root> and www.<root>.
//
// Tenant and custom-domain traffic may not reach the management pages;
// those paths redirect to "/".  A bare "/" is rewritten to the internal
// landing page (/s/<tenant> or /d/<host>).  Other paths pass through with
// the decision attached to the request context.
//
// Workflow
// --------
//   1. Strip ports and lowercase.
//   2. Preview form, then local form, then production subdomain form.
//   3. Otherwise look up a domain record for the full hostname.
//   4. Apply the reserved-prefix / rewrite / passthrough rule.
//
// Notes
// -----
// • A failed domain lookup is logged and treated as root traffic.  The site
//   stays up when the store does not.
// • Concurrent lookups for the same host share one store call through
//   singleflight.  Nothing is retained once the call returns.
// • The shared call is detached from the caller that started it and bounded
//   by LookupTimeout, so one dropped client cannot fail the others.
// • SSL status is never consulted.
// • Oxford commas, two spaces after periods.
package routing

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/taubermatt/platform/internal/metrics"
	"github.com/taubermatt/platform/internal/record"
)

// DefaultPreviewSuffix is the hosting provider's preview-deployment domain.
const DefaultPreviewSuffix = ".vercel.app"

// previewSep separates tenant and branch in preview hostnames.
const previewSep = "---"

// LookupTimeout bounds one shared custom-domain lookup.
const LookupTimeout = 2 * time.Second

// -----------------------------------------------------------------------------
// Decision
// -----------------------------------------------------------------------------

// Kind is what the middleware does with a request.
type Kind int

const (
	Passthrough Kind = iota
	Rewrite
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Rewrite:
		return "rewrite"
	case Redirect:
		return "redirect"
	default:
		return "passthrough"
	}
}

// Class is who the request is addressed to.
type Class int

const (
	ClassRoot Class = iota
	ClassSubdomain
	ClassCustomDomain
)

func (c Class) String() string {
	switch c {
	case ClassSubdomain:
		return "subdomain"
	case ClassCustomDomain:
		return "custom_domain"
	default:
		return "root"
	}
}

// Decision is the router's verdict for one request.
type Decision struct {
	Kind     Kind
	Class    Class
	Tenant   string // set for ClassSubdomain
	Hostname string // port-free request host
	Target   string // rewrite path or redirect location
}

// -----------------------------------------------------------------------------
// Reserved management paths
// -----------------------------------------------------------------------------

// Deployment profiles for reserved paths.
const (
	ProfileAdmin = "admin" // admin UI mounted under /admin
	ProfileSplit = "split" // admin UI split across /subdomains and /domains
)

// ReservedPrefixes returns the management prefixes for a profile.  Unknown
// profiles fall back to ProfileAdmin.
func ReservedPrefixes(profile string) []string {
	if profile == ProfileSplit {
		return []string{"/subdomains", "/domains"}
	}
	return []string{"/admin"}
}

// -----------------------------------------------------------------------------
// Router
// -----------------------------------------------------------------------------

// DomainLookup fetches a custom-domain record.  record.Store satisfies it.
type DomainLookup interface {
	Domain(ctx context.Context, name string) (*record.Domain, error)
}

// Config configures a Router.
type Config struct {
	RootDomain    string   // may include a port, e.g. "localhost:3000"
	PreviewSuffix string   // DefaultPreviewSuffix when empty
	Reserved      []string // ReservedPrefixes(ProfileAdmin) when empty
}

// Router classifies hosts.  Safe for concurrent use.
type Router struct {
	root     string
	preview  string
	reserved []string
	domains  DomainLookup
	log      *zap.Logger
	group    singleflight.Group
}

// New builds a Router.  domains may be nil, in which case no host is ever
// treated as a custom domain.
func New(cfg Config, domains DomainLookup, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	preview := cfg.PreviewSuffix
	if preview == "" {
		preview = DefaultPreviewSuffix
	}
	reserved := cfg.Reserved
	if len(reserved) == 0 {
		reserved = ReservedPrefixes(ProfileAdmin)
	}
	return &Router{
		root:     strings.ToLower(stripPort(cfg.RootDomain)),
		preview:  strings.ToLower(preview),
		reserved: reserved,
		domains:  domains,
		log:      log,
	}
}

// Classify decides how to handle a request for host and path.
func (rt *Router) Classify(ctx context.Context, host, path string) Decision {
	hostname := strings.ToLower(stripPort(host))

	var d Decision
	switch tenant, ok := rt.tenant(hostname); {
	case ok:
		d = rt.decide(ClassSubdomain, path, "/s/"+tenant)
		d.Tenant = tenant
	case !isLocal(hostname) && rt.isCustomDomain(ctx, hostname):
		d = rt.decide(ClassCustomDomain, path, "/d/"+hostname)
	default:
		d = Decision{Kind: Passthrough, Class: ClassRoot}
	}
	d.Hostname = hostname

	metrics.RouteDecisions.WithLabelValues(d.Class.String(), d.Kind.String()).Inc()
	return d
}

// tenant extracts a subdomain tenant name from hostname.
func (rt *Router) tenant(hostname string) (string, bool) {
	if strings.Contains(hostname, previewSep) && strings.HasSuffix(hostname, rt.preview) {
		name, _, _ := strings.Cut(hostname, previewSep)
		return name, name != ""
	}

	if isLocal(hostname) {
		if !strings.HasSuffix(hostname, ".localhost") {
			return "", false
		}
		name, _, _ := strings.Cut(hostname, ".")
		return name, name != ""
	}

	if rt.isRootHost(hostname) || !strings.HasSuffix(hostname, "."+rt.root) {
		return "", false
	}
	name := strings.TrimSuffix(hostname, "."+rt.root)
	return name, name != ""
}

// isCustomDomain reports whether hostname has a verified domain record.
func (rt *Router) isCustomDomain(ctx context.Context, hostname string) bool {
	if rt.domains == nil || hostname == "" || rt.isRootHost(hostname) ||
		strings.HasSuffix(hostname, "."+rt.root) {
		return false
	}

	v, err, _ := rt.group.Do(hostname, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LookupTimeout)
		defer cancel()
		rec, err := rt.domains.Domain(lctx, hostname)
		if err != nil {
			return false, err
		}
		return rec.Verified, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, record.ErrNotFound):
		case errors.Is(err, context.Canceled):
			// client gone; not a store fault
		default:
			metrics.DomainLookupErrors.Inc()
			rt.log.Warn("domain lookup failed, serving as root",
				zap.String("host", hostname),
				zap.Error(err))
		}
		return false
	}
	return v.(bool)
}

func (rt *Router) decide(class Class, path, landing string) Decision {
	for _, p := range rt.reserved {
		if strings.HasPrefix(path, p) {
			return Decision{Kind: Redirect, Class: class, Target: "/"}
		}
	}
	if path == "/" {
		return Decision{Kind: Rewrite, Class: class, Target: landing}
	}
	return Decision{Kind: Passthrough, Class: class}
}

func (rt *Router) isRootHost(hostname string) bool {
	return hostname == rt.root || hostname == "www."+rt.root
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

// isLocal reports loopback development hosts.
func isLocal(hostname string) bool {
	return hostname == "localhost" ||
		strings.HasSuffix(hostname, ".localhost") ||
		hostname == "127.0.0.1" ||
		hostname == "::1"
}

// stripPort removes a :port suffix, keeping bracketed IPv6 literals intact.
func stripPort(h string) string {
	if strings.HasPrefix(h, "[") {
		if i := strings.IndexByte(h, ']'); i != -1 {
			return h[1:i]
		}
		return h
	}
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
