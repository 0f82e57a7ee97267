// internal/action/action.go
//
// Admin operations: register, delete, and verify subdomains and custom
// domains.
//
// Context
// -------
// Each operation validates input, consults the record store, calls the
// hosting provider when a custom domain is involved, writes the store, and
// invalidates the cached admin fragments.  The provider is the source of
// truth for whether a custom domain exists, so a failed provider add never
// leaves a record behind.  Deletion runs the other way round: provider
// cleanup is best effort and the local record is always removed.
//
// Domain wizard
// -------------
//
//	input → CreateDomain → dns → VerifyDomain → complete
//
// Notes
// -----
// • Domain names are lowercased and trimmed before validation, so
//   "MyDomain.COM " is accepted as "mydomain.com".
// • Registration keeps an existence pre-check for the conflict message and
//   then inserts with SetNX, so a concurrent duplicate still loses.
// • Oxford commas, two spaces after periods.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/taubermatt/platform/internal/provider"
	"github.com/taubermatt/platform/internal/record"
	"github.com/taubermatt/platform/internal/validate"
)

// Wizard steps.
const (
	StepInput    = "input"
	StepDNS      = "dns"
	StepComplete = "complete"
)

// Cache namespaces invalidated after writes.
const (
	PageSubdomains = "subdomains"
	PageDomains    = "domains"
)

// Provider is the hosting-provider surface the actions need.  Every call
// reports failure in its result, never as a Go error.
type Provider interface {
	AddDomain(ctx context.Context, name string) provider.Result
	RemoveDomain(ctx context.Context, name string) provider.Result
	VerifyDomain(ctx context.Context, name string) provider.VerifyResult
	VerificationDetails(ctx context.Context, name string) provider.DetailsResult
	DNSRecords(ctx context.Context, name string) provider.DNSResult
}

// Invalidator drops cached renders under a namespace.
type Invalidator interface {
	Invalidate(namespace string)
}

// Config carries the platform settings the actions need.
type Config struct {
	RootDomain string
	Protocol   string
	Icons      validate.IconChecker
}

// Service runs admin operations.  Safe for concurrent use.
type Service struct {
	store *record.Store
	prov  Provider
	pages Invalidator
	cfg   Config
	log   *zap.Logger
	v     *validator.Validate
	now   func() time.Time
}

// New wires a Service.  pages may be nil.
func New(store *record.Store, prov Provider, pages Invalidator, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "https"
	}
	return &Service{
		store: store,
		prov:  prov,
		pages: pages,
		cfg:   cfg,
		log:   log,
		v:     validate.New(cfg.Icons),
		now:   time.Now,
	}
}

//
// Results
//

// SubdomainCreated is returned by CreateSubdomain.  URL is where the new
// tenant is served.
type SubdomainCreated struct {
	Name string
	Icon string
	URL  string
}

// DomainCreated is returned by CreateDomain.
type DomainCreated struct {
	Domain string
	Icon   string
	Step   string
}

// Verification is returned by VerifyDomain.
type Verification struct {
	Domain   string
	Verified bool
	Message  string
	Step     string
}

// Details is returned by VerificationDetails.
type Details struct {
	Verified     bool                    `json:"verified"`
	Verification []provider.Verification `json:"verification"`
}

//
// Subdomains
//

type subdomainInput struct {
	Subdomain string `validate:"required"`
	Icon      string `validate:"required,emoji_icon"`
}

// CreateSubdomain registers name with icon.
func (s *Service) CreateSubdomain(ctx context.Context, name, icon string) (*SubdomainCreated, error) {
	if err := s.check(subdomainInput{Subdomain: name, Icon: icon}, MsgSubdomainRequired); err != nil {
		return nil, err
	}

	clean := validate.SanitizeSubdomain(name)
	if clean != name {
		return nil, &ValidationError{
			Field:      "subdomain",
			Message:    MsgSubdomainChars,
			Suggestion: validate.SuggestSubdomain(name),
		}
	}

	if _, err := s.store.Subdomain(ctx, clean); err == nil {
		return nil, &ConflictError{Message: MsgSubdomainTaken}
	} else if !errors.Is(err, record.ErrNotFound) {
		return nil, err
	}

	ok, err := s.store.CreateSubdomain(ctx, record.Subdomain{
		Name:      clean,
		Emoji:     icon,
		CreatedAt: s.now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ConflictError{Message: MsgSubdomainTaken}
	}

	s.invalidate(PageSubdomains)
	s.log.Info("subdomain created", zap.String("subdomain", clean))

	return &SubdomainCreated{
		Name: clean,
		Icon: icon,
		URL:  fmt.Sprintf("%s://%s.%s", s.cfg.Protocol, clean, s.cfg.RootDomain),
	}, nil
}

// DeleteSubdomain removes a tenant.  Names that sanitisation would alter are
// rejected rather than rewritten.  Deleting an unknown name succeeds.
func (s *Service) DeleteSubdomain(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	clean := validate.SanitizeSubdomain(name)
	if clean == "" {
		return "", &ValidationError{Field: "subdomain", Message: MsgSubdomainOnly}
	}
	if clean != name {
		return "", &ValidationError{Field: "subdomain", Message: MsgSubdomainChars}
	}
	if err := s.store.DeleteSubdomain(ctx, clean); err != nil {
		return "", err
	}
	s.invalidate(PageSubdomains)
	s.log.Info("subdomain deleted", zap.String("subdomain", clean))
	return MsgSubdomainDeleted, nil
}

// Subdomains lists every tenant.
func (s *Service) Subdomains(ctx context.Context) ([]record.Subdomain, error) {
	return s.store.Subdomains(ctx)
}

// Subdomain loads one tenant.  record.ErrNotFound when absent.
func (s *Service) Subdomain(ctx context.Context, name string) (*record.Subdomain, error) {
	return s.store.Subdomain(ctx, validate.SanitizeSubdomain(name))
}

//
// Custom domains
//

type domainInput struct {
	Domain string `validate:"required,domain_name"`
	Icon   string `validate:"required,emoji_icon"`
}

// CreateDomain attaches domain to the provider project and records it as
// unverified with SSL pending.
func (s *Service) CreateDomain(ctx context.Context, domain, icon string) (*DomainCreated, error) {
	name := validate.NormalizeDomain(domain)
	if err := s.check(domainInput{Domain: name, Icon: icon}, MsgDomainRequired); err != nil {
		return nil, err
	}

	if _, err := s.store.Domain(ctx, name); err == nil {
		return nil, &ConflictError{Message: MsgDomainTaken}
	} else if !errors.Is(err, record.ErrNotFound) {
		return nil, err
	}

	if res := s.prov.AddDomain(ctx, name); !res.Success {
		return nil, &ProviderError{Message: prefixAddFailed + res.Error}
	}

	ok, err := s.store.CreateDomain(ctx, record.Domain{
		Name:      name,
		Emoji:     icon,
		CreatedAt: s.now().UnixMilli(),
		Verified:  false,
		SSLStatus: record.SSLPending,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ConflictError{Message: MsgDomainTaken}
	}

	s.invalidate(PageDomains)
	s.log.Info("domain created", zap.String("domain", name))

	return &DomainCreated{Domain: name, Icon: icon, Step: StepDNS}, nil
}

// DeleteDomain detaches domain from the provider and removes the record.
// A provider failure is logged and does not stop the local delete.
func (s *Service) DeleteDomain(ctx context.Context, domain string) (string, error) {
	name, err := requireDomain(domain)
	if err != nil {
		return "", err
	}

	if res := s.prov.RemoveDomain(ctx, name); !res.Success {
		s.log.Warn("provider removal failed, deleting record anyway",
			zap.String("domain", name),
			zap.String("error", res.Error))
	}

	if err := s.store.DeleteDomain(ctx, name); err != nil {
		return "", err
	}
	s.invalidate(PageDomains)
	s.log.Info("domain deleted", zap.String("domain", name))
	return MsgDomainDeleted, nil
}

// VerifyDomain asks the provider to check DNS and stores the outcome.
// Success with Verified=false means the check ran but has not passed yet.
func (s *Service) VerifyDomain(ctx context.Context, domain string) (*Verification, error) {
	name, err := requireDomain(domain)
	if err != nil {
		return nil, err
	}

	res := s.prov.VerifyDomain(ctx, name)
	if !res.Success {
		return nil, &ProviderError{Message: prefixVerifyFailed + res.Error}
	}

	if err := s.store.UpdateDomainVerification(ctx, name, res.Verified); err != nil {
		return nil, err
	}
	s.invalidate(PageDomains)

	out := &Verification{Domain: name, Verified: res.Verified, Message: MsgNotVerified, Step: StepDNS}
	if res.Verified {
		out.Message = MsgVerified
		out.Step = StepComplete
	}
	s.log.Info("domain verification", zap.String("domain", name), zap.Bool("verified", res.Verified))
	return out, nil
}

// VerificationDetails returns the DNS challenges the provider is waiting on.
func (s *Service) VerificationDetails(ctx context.Context, domain string) (*Details, error) {
	name, err := requireDomain(domain)
	if err != nil {
		return nil, err
	}
	res := s.prov.VerificationDetails(ctx, name)
	if !res.Success {
		return nil, &ProviderError{Message: prefixDetailsFailed + res.Error}
	}
	return &Details{Verified: res.Verified, Verification: res.Verification}, nil
}

// DNSRecords returns the records the operator must create for domain.
func (s *Service) DNSRecords(ctx context.Context, domain string) ([]provider.DNSRecord, error) {
	name, err := requireDomain(domain)
	if err != nil {
		return nil, err
	}
	res := s.prov.DNSRecords(ctx, name)
	if !res.Success {
		return nil, &ProviderError{Message: prefixDNSFailed + res.Error}
	}
	return res.Records, nil
}

// Domains lists every custom domain.
func (s *Service) Domains(ctx context.Context) ([]record.Domain, error) {
	return s.store.Domains(ctx)
}

// Domain loads one custom domain.  record.ErrNotFound when absent.
func (s *Service) Domain(ctx context.Context, name string) (*record.Domain, error) {
	return s.store.Domain(ctx, name)
}

//
// helpers
//

// check runs struct validation and maps the first failure to a message.
// A missing field wins over a malformed one.
func (s *Service) check(in any, requiredMsg string) error {
	err := s.v.Struct(in)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	for _, fe := range fields {
		if fe.Tag() == "required" {
			return &ValidationError{Field: strings.ToLower(fe.Field()), Message: requiredMsg}
		}
	}
	fe := fields[0]
	msg := MsgInvalidIcon
	if fe.Tag() == "domain_name" {
		msg = MsgInvalidDomain
	}
	return &ValidationError{Field: strings.ToLower(fe.Field()), Message: msg}
}

func requireDomain(domain string) (string, error) {
	name := validate.NormalizeDomain(domain)
	if name == "" {
		return "", &ValidationError{Field: "domain", Message: MsgDomainOnly}
	}
	return name, nil
}

func (s *Service) invalidate(ns string) {
	if s.pages != nil {
		s.pages.Invalidate(ns)
	}
}
