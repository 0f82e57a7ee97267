package provider

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taubermatt/platform/internal/metrics"
)

// DNS targets Vercel expects custom domains to point at.
const (
	ApexIP      = "76.76.21.21"
	CNAMETarget = "cname.vercel-dns.com"
)

// API is the subset of Client the Adapter drives.  Tests substitute fakes.
type API interface {
	AddProjectDomain(ctx context.Context, name string) (*ProjectDomain, error)
	GetProjectDomain(ctx context.Context, name string) (*ProjectDomain, error)
	VerifyProjectDomain(ctx context.Context, name string) (*ProjectDomain, error)
	RemoveProjectDomain(ctx context.Context, name string) error
	DeleteDomain(ctx context.Context, name string) error
	GetDomainConfig(ctx context.Context, name string) (*DomainConfig, error)
}

var _ API = (*Client)(nil)

//
// Results
//

// Result is the outcome of one adapter call.  Error holds the provider's
// message when Success is false.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// VerifyResult reports whether verification passed.  Success with
// Verified=false means the check ran and DNS is not ready yet.
type VerifyResult struct {
	Result
	Verified bool `json:"verified"`
}

// DetailsResult carries the outstanding verification challenges.
type DetailsResult struct {
	Result
	Verified     bool           `json:"verified"`
	Verification []Verification `json:"verification"`
}

// DNSRecord is one record the operator must create at their registrar.
type DNSRecord struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DNSResult lists the records needed for one domain.
type DNSResult struct {
	Result
	Records []DNSRecord `json:"records"`
}

// ConfigResult reports whether the domain's DNS resolves to Vercel, which
// is when a certificate can be issued.
type ConfigResult struct {
	Result
	Configured bool `json:"configured"`
}

//
// Adapter
//

// Adapter wraps API so that no call ever returns a Go error.  Failures are
// logged, counted, and folded into the Result.
type Adapter struct {
	api API
	log *zap.Logger
}

// NewAdapter wraps api.
func NewAdapter(api API, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{api: api, log: log}
}

// AddDomain attaches name to the project.
func (a *Adapter) AddDomain(ctx context.Context, name string) Result {
	_, err := a.api.AddProjectDomain(ctx, name)
	return a.result("add_domain", name, err)
}

// RemoveDomain detaches name from the project and deletes it from the
// account.  Both calls run concurrently and always run to completion; the
// first failure fails the result.
func (a *Adapter) RemoveDomain(ctx context.Context, name string) Result {
	var g errgroup.Group
	g.Go(func() error { return a.api.RemoveProjectDomain(ctx, name) })
	g.Go(func() error { return a.api.DeleteDomain(ctx, name) })
	return a.result("remove_domain", name, g.Wait())
}

// VerifyDomain refreshes the project domain and triggers verification
// concurrently.  Verified is taken from the verify response.
func (a *Adapter) VerifyDomain(ctx context.Context, name string) VerifyResult {
	var verified bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := a.api.GetProjectDomain(gctx, name)
		return err
	})
	g.Go(func() error {
		pd, err := a.api.VerifyProjectDomain(gctx, name)
		if err == nil && pd != nil {
			verified = pd.Verified
		}
		return err
	})
	err := g.Wait()
	res := VerifyResult{Result: a.result("verify_domain", name, err)}
	if err == nil {
		res.Verified = verified
	}
	return res
}

// VerificationDetails returns the challenges Vercel is waiting on.
func (a *Adapter) VerificationDetails(ctx context.Context, name string) DetailsResult {
	pd, err := a.api.GetProjectDomain(ctx, name)
	res := DetailsResult{Result: a.result("verification_details", name, err)}
	if err == nil && pd != nil {
		res.Verified = pd.Verified
		res.Verification = pd.Verification
	}
	return res
}

// DNSRecords derives the records name needs from the project's view of it.
func (a *Adapter) DNSRecords(ctx context.Context, name string) DNSResult {
	pd, err := a.api.GetProjectDomain(ctx, name)
	res := DNSResult{Result: a.result("dns_records", name, err)}
	if err == nil {
		if pd == nil {
			pd = &ProjectDomain{Name: name}
		}
		res.Records = RecordsFor(name, pd)
	}
	return res
}

// DomainConfig reports whether name's DNS already points at Vercel.
func (a *Adapter) DomainConfig(ctx context.Context, name string) ConfigResult {
	cfg, err := a.api.GetDomainConfig(ctx, name)
	res := ConfigResult{Result: a.result("domain_config", name, err)}
	if err == nil && cfg != nil {
		res.Configured = !cfg.Misconfigured
	}
	return res
}

// RecordsFor returns an A record for an apex domain or a CNAME for a deeper
// host, followed by one TXT record per TXT verification challenge.
func RecordsFor(name string, pd *ProjectDomain) []DNSRecord {
	apex := pd.ApexName
	if apex == "" {
		labels := strings.Split(name, ".")
		if len(labels) > 2 {
			labels = labels[len(labels)-2:]
		}
		apex = strings.Join(labels, ".")
	}

	var out []DNSRecord
	if apex == name {
		out = append(out, DNSRecord{Type: "A", Name: "@", Value: ApexIP})
	} else {
		out = append(out, DNSRecord{
			Type:  "CNAME",
			Name:  strings.TrimSuffix(name, "."+apex),
			Value: CNAMETarget,
		})
	}
	for _, v := range pd.Verification {
		if !strings.EqualFold(v.Type, "TXT") {
			continue
		}
		out = append(out, DNSRecord{Type: "TXT", Name: v.Domain, Value: v.Value})
	}
	return out
}

func (a *Adapter) result(op, name string, err error) Result {
	if err == nil {
		metrics.ProviderRequests.WithLabelValues(op, "ok").Inc()
		return Result{Success: true}
	}
	metrics.ProviderRequests.WithLabelValues(op, "error").Inc()
	a.log.Error("provider call failed",
		zap.String("op", op),
		zap.String("domain", name),
		zap.Error(err))
	return Result{Error: message(err)}
}

func message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown error"
}
