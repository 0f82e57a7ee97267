// internal/record/record.go
//
// Tenant and custom-domain records over the key-value store.
//
// Context
// -------
// Two record kinds share one flat key space:
//
//   subdomain:<name>   → {"emoji","createdAt"}
//   domain:<hostname>  → {"emoji","createdAt","verified","sslStatus"}
//
// `createdAt` is Unix milliseconds.  Domain names are lowercased and trimmed
// before any key is built, so "MyDomain.COM " and "mydomain.com" address the
// same record.  There is no in-process cache; every call is a store round
// trip.
//
// Workflow
// --------
//   • Create*  – insert-if-absent, reports false when the name is taken.
//   • Put*     – unconditional overwrite.
//   • Update*  – read, modify one field, write back.  No-op when absent.
//   • List     – Keys + MGet.  A listed key with no usable value becomes a
//                placeholder record instead of an error.
//
// Notes
// -----
// • Update* is not atomic.  The watcher and the verify flow touch different
//   fields, but a concurrent pair may still lose one write.
// • Oxford commas, two spaces after periods.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/taubermatt/platform/internal/kv"
	"github.com/taubermatt/platform/internal/metrics"
	"github.com/taubermatt/platform/internal/validate"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record: not found")

// Key prefixes.
const (
	PrefixSubdomain = "subdomain:"
	PrefixDomain    = "domain:"
)

// PlaceholderEmoji is shown for listed records whose value is unreadable.
const PlaceholderEmoji = "❓"

//
// Types
//

// SSLStatus is the certificate state of a custom domain.
type SSLStatus string

const (
	SSLPending SSLStatus = "pending"
	SSLValid   SSLStatus = "valid"
	SSLError   SSLStatus = "error"
)

// Valid reports whether s is one of the known states.
func (s SSLStatus) Valid() bool {
	switch s {
	case SSLPending, SSLValid, SSLError:
		return true
	}
	return false
}

// Subdomain is a tenant addressed as <name>.<root>.
type Subdomain struct {
	Name      string `json:"-"`
	Emoji     string `json:"emoji"`
	CreatedAt int64  `json:"createdAt"`
}

// Created returns CreatedAt as a time.
func (s Subdomain) Created() time.Time { return time.UnixMilli(s.CreatedAt) }

// Domain is a tenant addressed by its own hostname.
type Domain struct {
	Name      string    `json:"-"`
	Emoji     string    `json:"emoji"`
	CreatedAt int64     `json:"createdAt"`
	Verified  bool      `json:"verified"`
	SSLStatus SSLStatus `json:"sslStatus"`
}

// Created returns CreatedAt as a time.
func (d Domain) Created() time.Time { return time.UnixMilli(d.CreatedAt) }

//
// Store
//

// Store reads and writes records.  Safe for concurrent use.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for placeholders.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps a key-value backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{kv: backend, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SubdomainKey returns the store key for a tenant name.
func SubdomainKey(name string) string { return PrefixSubdomain + name }

// DomainKey returns the store key for a hostname after normalisation.
func DomainKey(name string) string { return PrefixDomain + validate.NormalizeDomain(name) }

//
// Subdomains
//

// Subdomain loads one tenant record.
func (s *Store) Subdomain(ctx context.Context, name string) (*Subdomain, error) {
	var rec Subdomain
	if err := s.load(ctx, "get_subdomain", SubdomainKey(name), &rec); err != nil {
		return nil, err
	}
	rec.Name = name
	return &rec, nil
}

// PutSubdomain overwrites a tenant record.
func (s *Store) PutSubdomain(ctx context.Context, rec Subdomain) error {
	return s.save(ctx, "put_subdomain", SubdomainKey(rec.Name), rec)
}

// CreateSubdomain inserts rec unless the name is taken.
func (s *Store) CreateSubdomain(ctx context.Context, rec Subdomain) (bool, error) {
	return s.create(ctx, "create_subdomain", SubdomainKey(rec.Name), rec)
}

// DeleteSubdomain removes a tenant record.  Missing names are not an error.
func (s *Store) DeleteSubdomain(ctx context.Context, name string) error {
	return s.del(ctx, "delete_subdomain", SubdomainKey(name))
}

// Subdomains lists every tenant record sorted by name.
func (s *Store) Subdomains(ctx context.Context) ([]Subdomain, error) {
	names, vals, err := s.list(ctx, PrefixSubdomain)
	if err != nil {
		return nil, err
	}
	out := make([]Subdomain, 0, len(names))
	for i, name := range names {
		rec := Subdomain{}
		if vals[i] == nil || json.Unmarshal(vals[i], &rec) != nil || rec.Emoji == "" {
			rec = Subdomain{Emoji: PlaceholderEmoji, CreatedAt: s.now().UnixMilli()}
		}
		rec.Name = name
		out = append(out, rec)
	}
	metrics.RegisteredTenants.WithLabelValues("subdomain").Set(float64(len(out)))
	return out, nil
}

//
// Domains
//

// Domain loads one custom-domain record.
func (s *Store) Domain(ctx context.Context, name string) (*Domain, error) {
	var rec Domain
	if err := s.load(ctx, "get_domain", DomainKey(name), &rec); err != nil {
		return nil, err
	}
	rec.Name = validate.NormalizeDomain(name)
	if !rec.SSLStatus.Valid() {
		rec.SSLStatus = SSLPending
	}
	return &rec, nil
}

// PutDomain overwrites a custom-domain record.
func (s *Store) PutDomain(ctx context.Context, rec Domain) error {
	return s.save(ctx, "put_domain", DomainKey(rec.Name), rec)
}

// CreateDomain inserts rec unless the hostname is taken.
func (s *Store) CreateDomain(ctx context.Context, rec Domain) (bool, error) {
	return s.create(ctx, "create_domain", DomainKey(rec.Name), rec)
}

// DeleteDomain removes a custom-domain record.
func (s *Store) DeleteDomain(ctx context.Context, name string) error {
	return s.del(ctx, "delete_domain", DomainKey(name))
}

// Domains lists every custom-domain record sorted by hostname.
func (s *Store) Domains(ctx context.Context) ([]Domain, error) {
	names, vals, err := s.list(ctx, PrefixDomain)
	if err != nil {
		return nil, err
	}
	out := make([]Domain, 0, len(names))
	for i, name := range names {
		rec := Domain{}
		if vals[i] == nil || json.Unmarshal(vals[i], &rec) != nil || rec.Emoji == "" {
			rec = Domain{
				Emoji:     PlaceholderEmoji,
				CreatedAt: s.now().UnixMilli(),
				SSLStatus: SSLPending,
			}
		}
		if !rec.SSLStatus.Valid() {
			rec.SSLStatus = SSLPending
		}
		rec.Name = name
		out = append(out, rec)
	}
	metrics.RegisteredTenants.WithLabelValues("domain").Set(float64(len(out)))
	return out, nil
}

// UpdateDomainVerification sets the verified flag on an existing record.
func (s *Store) UpdateDomainVerification(ctx context.Context, name string, verified bool) error {
	return s.updateDomain(ctx, name, func(d *Domain) { d.Verified = verified })
}

// UpdateSSLStatus sets the certificate state on an existing record.
func (s *Store) UpdateSSLStatus(ctx context.Context, name string, status SSLStatus) error {
	if !status.Valid() {
		return fmt.Errorf("record: invalid ssl status %q", status)
	}
	return s.updateDomain(ctx, name, func(d *Domain) { d.SSLStatus = status })
}

func (s *Store) updateDomain(ctx context.Context, name string, mutate func(*Domain)) error {
	rec, err := s.Domain(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	mutate(rec)
	return s.PutDomain(ctx, *rec)
}

//
// helpers
//

func (s *Store) load(ctx context.Context, op, key string, dst any) error {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return observe(op, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return observe(op, fmt.Errorf("decode %s: %w", key, err))
	}
	return nil
}

func (s *Store) save(ctx context.Context, op, key string, rec any) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return observe(op, s.kv.Set(ctx, key, raw))
}

func (s *Store) create(ctx context.Context, op, key string, rec any) (bool, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	ok, err := s.kv.SetNX(ctx, key, raw)
	return ok, observe(op, err)
}

func (s *Store) del(ctx context.Context, op, key string) error {
	return observe(op, s.kv.Del(ctx, key))
}

// list returns bare names (prefix stripped) and their raw values, sorted.
func (s *Store) list(ctx context.Context, prefix string) ([]string, [][]byte, error) {
	keys, err := s.kv.Keys(ctx, prefix+"*")
	if err != nil {
		return nil, nil, observe("keys", err)
	}
	if len(keys) == 0 {
		return nil, nil, nil
	}
	sort.Strings(keys)

	vals, err := s.kv.MGet(ctx, keys...)
	if err != nil {
		return nil, nil, observe("mget", err)
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = strings.TrimPrefix(k, prefix)
	}
	return names, vals, nil
}

func observe(op string, err error) error {
	if err != nil {
		metrics.RecordStoreErrors.WithLabelValues(op).Inc()
		return fmt.Errorf("record %s: %w", op, err)
	}
	return nil
}
