package action

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taubermatt/platform/internal/kv"
	"github.com/taubermatt/platform/internal/provider"
	"github.com/taubermatt/platform/internal/record"
)

// fakeProvider answers from fields and records the names it saw.
type fakeProvider struct {
	mu       sync.Mutex
	calls    []string
	addErr   string
	rmErr    string
	verifyOK bool
	verErr   string
	details  provider.DetailsResult
	dns      provider.DNSResult
}

func (f *fakeProvider) note(op, name string) {
	f.mu.Lock()
	f.calls = append(f.calls, op+" "+name)
	f.mu.Unlock()
}

func result(errMsg string) provider.Result {
	if errMsg != "" {
		return provider.Result{Error: errMsg}
	}
	return provider.Result{Success: true}
}

func (f *fakeProvider) AddDomain(_ context.Context, name string) provider.Result {
	f.note("add", name)
	return result(f.addErr)
}

func (f *fakeProvider) RemoveDomain(_ context.Context, name string) provider.Result {
	f.note("remove", name)
	return result(f.rmErr)
}

func (f *fakeProvider) VerifyDomain(_ context.Context, name string) provider.VerifyResult {
	f.note("verify", name)
	return provider.VerifyResult{Result: result(f.verErr), Verified: f.verErr == "" && f.verifyOK}
}

func (f *fakeProvider) VerificationDetails(_ context.Context, name string) provider.DetailsResult {
	f.note("details", name)
	return f.details
}

func (f *fakeProvider) DNSRecords(_ context.Context, name string) provider.DNSResult {
	f.note("dns", name)
	return f.dns
}

type fakePages struct{ dropped []string }

func (p *fakePages) Invalidate(ns string) { p.dropped = append(p.dropped, ns) }

// downKV fails every call.
type downKV struct{ kv.Memory }

var errDown = errors.New("store down")

func (*downKV) Get(context.Context, string) ([]byte, error) { return nil, errDown }

func newService(t *testing.T) (*Service, *record.Store, *fakeProvider, *fakePages) {
	t.Helper()
	store := record.New(kv.NewMemory())
	prov := &fakeProvider{}
	pages := &fakePages{}
	svc := New(store, prov, pages, Config{RootDomain: "example.com", Protocol: "https"}, nil)
	svc.now = func() time.Time { return time.UnixMilli(1234) }
	return svc, store, prov, pages
}

//
// Subdomains
//

func TestCreateSubdomain_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _, _, pages := newService(t)

	out, err := svc.CreateSubdomain(ctx, "tenant-1", "🚀")
	require.NoError(t, err)
	assert.Equal(t, &SubdomainCreated{Name: "tenant-1", Icon: "🚀", URL: "https://tenant-1.example.com"}, out)
	assert.Equal(t, []string{PageSubdomains}, pages.dropped)

	list, err := svc.Subdomains(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "tenant-1", list[0].Name)
	assert.Equal(t, "🚀", list[0].Emoji)
	assert.Equal(t, int64(1234), list[0].CreatedAt)

	msg, err := svc.DeleteSubdomain(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, MsgSubdomainDeleted, msg)

	list, err = svc.Subdomains(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateSubdomain_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService(t)

	cases := []struct {
		name, icon, want string
	}{
		{"", "🚀", MsgSubdomainRequired},
		{"tenant", "", MsgSubdomainRequired},
		{"", "bad", MsgSubdomainRequired},
		{"tenant", "abc", MsgInvalidIcon},
		{"tenant", strings.Repeat("🚀", 6), MsgInvalidIcon},
		{"Tenant", "🚀", MsgSubdomainChars},
		{"ten_ant", "🚀", MsgSubdomainChars},
	}
	for _, tc := range cases {
		_, err := svc.CreateSubdomain(ctx, tc.name, tc.icon)
		require.Error(t, err, "%q/%q", tc.name, tc.icon)
		assert.True(t, IsValidation(err))
		assert.Equal(t, tc.want, err.Error(), "%q/%q", tc.name, tc.icon)
	}
}

func TestCreateSubdomain_Suggestion(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.CreateSubdomain(context.Background(), "My Shop", "🚀")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "subdomain", verr.Field)
	assert.Equal(t, "my-shop", verr.Suggestion)
}

func TestCreateSubdomain_Taken(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService(t)

	_, err := svc.CreateSubdomain(ctx, "taken", "🚀")
	require.NoError(t, err)

	_, err = svc.CreateSubdomain(ctx, "taken", "🎉")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, MsgSubdomainTaken, err.Error())
}

func TestDeleteSubdomain_RejectsAlteredName(t *testing.T) {
	ctx := context.Background()
	svc, store, _, pages := newService(t)

	_, err := svc.CreateSubdomain(ctx, "shop", "🚀")
	require.NoError(t, err)
	pages.dropped = nil

	for _, name := range []string{"Sh!op", "Shop", "shop!"} {
		msg, err := svc.DeleteSubdomain(ctx, name)
		require.Error(t, err, name)
		assert.Empty(t, msg)
		assert.Equal(t, MsgSubdomainChars, err.Error())
	}

	_, err = svc.DeleteSubdomain(ctx, "  ")
	require.Error(t, err)
	assert.Equal(t, MsgSubdomainOnly, err.Error())

	_, err = store.Subdomain(ctx, "shop")
	require.NoError(t, err)
	assert.Empty(t, pages.dropped)

	msg, err := svc.DeleteSubdomain(ctx, " shop ")
	require.NoError(t, err)
	assert.Equal(t, MsgSubdomainDeleted, msg)
}

func TestCreateSubdomain_StoreDown(t *testing.T) {
	store := record.New(&downKV{})
	svc := New(store, &fakeProvider{}, nil, Config{RootDomain: "example.com"}, nil)

	_, err := svc.CreateSubdomain(context.Background(), "tenant", "🚀")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, MsgGeneric, UserMessage(err))
}

//
// Domains
//

func TestCreateDomain_NormalisesBeforeEverything(t *testing.T) {
	ctx := context.Background()
	svc, store, prov, pages := newService(t)

	out, err := svc.CreateDomain(ctx, "MyDomain.COM ", "🌍")
	require.NoError(t, err)
	assert.Equal(t, &DomainCreated{Domain: "mydomain.com", Icon: "🌍", Step: StepDNS}, out)
	assert.Equal(t, []string{"add mydomain.com"}, prov.calls)
	assert.Equal(t, []string{PageDomains}, pages.dropped)

	rec, err := store.Domain(ctx, "mydomain.com")
	require.NoError(t, err)
	assert.False(t, rec.Verified)
	assert.Equal(t, record.SSLPending, rec.SSLStatus)
	assert.Equal(t, "🌍", rec.Emoji)

	prov.verifyOK = true
	v, err := svc.VerifyDomain(ctx, "MyDomain.com")
	require.NoError(t, err)
	assert.True(t, v.Verified)

	rec, err = store.Domain(ctx, "mydomain.com")
	require.NoError(t, err)
	assert.True(t, rec.Verified, "verify must address the record created for the normalised name")
}

func TestCreateDomain_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, prov, _ := newService(t)

	cases := []struct {
		domain, icon, want string
	}{
		{"", "🌍", MsgDomainRequired},
		{"a.com", "", MsgDomainRequired},
		{"   ", "🌍", MsgDomainRequired},
		{"bad", "", MsgDomainRequired},
		{"not a domain", "🌍", MsgInvalidDomain},
		{"www.deep.com", "🌍", MsgInvalidDomain},
		{"bad", "bad", MsgInvalidDomain},
		{"ok.com", "bad", MsgInvalidIcon},
	}
	for _, tc := range cases {
		_, err := svc.CreateDomain(ctx, tc.domain, tc.icon)
		require.Error(t, err, "%q/%q", tc.domain, tc.icon)
		assert.True(t, IsValidation(err))
		assert.Equal(t, tc.want, err.Error(), "%q/%q", tc.domain, tc.icon)
	}
	assert.Empty(t, prov.calls, "provider must not be called for invalid input")
}

func TestCreateDomain_ProviderFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, store, prov, pages := newService(t)
	prov.addErr = "Domain is already in use by another project"

	_, err := svc.CreateDomain(ctx, "mybrand.com", "🌍")
	require.Error(t, err)
	assert.True(t, IsProvider(err))
	assert.Equal(t, "Failed to add domain to Vercel: Domain is already in use by another project", err.Error())

	_, err = store.Domain(ctx, "mybrand.com")
	assert.ErrorIs(t, err, record.ErrNotFound)
	assert.Empty(t, pages.dropped)
}

func TestCreateDomain_Taken(t *testing.T) {
	ctx := context.Background()
	svc, _, prov, _ := newService(t)

	_, err := svc.CreateDomain(ctx, "mybrand.com", "🌍")
	require.NoError(t, err)

	_, err = svc.CreateDomain(ctx, "MYBRAND.com", "🎉")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, MsgDomainTaken, err.Error())
	assert.Equal(t, []string{"add mybrand.com"}, prov.calls)
}

func TestDeleteDomain_ProviderFailureStillDeletes(t *testing.T) {
	ctx := context.Background()
	svc, store, prov, pages := newService(t)

	_, err := svc.CreateDomain(ctx, "mybrand.com", "🌍")
	require.NoError(t, err)

	prov.rmErr = "forbidden"
	msg, err := svc.DeleteDomain(ctx, " MyBrand.com")
	require.NoError(t, err)
	assert.Equal(t, MsgDomainDeleted, msg)
	assert.Contains(t, prov.calls, "remove mybrand.com")
	assert.Equal(t, []string{PageDomains, PageDomains}, pages.dropped)

	_, err = store.Domain(ctx, "mybrand.com")
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestDeleteDomain_Required(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.DeleteDomain(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, MsgDomainOnly, err.Error())
}

func TestVerifyDomain(t *testing.T) {
	ctx := context.Background()
	svc, store, prov, _ := newService(t)
	_, err := svc.CreateDomain(ctx, "mybrand.com", "🌍")
	require.NoError(t, err)

	// Check ran, DNS not ready.
	v, err := svc.VerifyDomain(ctx, "mybrand.com")
	require.NoError(t, err)
	assert.False(t, v.Verified)
	assert.Equal(t, MsgNotVerified, v.Message)
	assert.Equal(t, StepDNS, v.Step)

	// Provider failure leaves the record untouched.
	require.NoError(t, store.UpdateDomainVerification(ctx, "mybrand.com", true))
	prov.verErr = "rate limited"
	_, err = svc.VerifyDomain(ctx, "mybrand.com")
	require.Error(t, err)
	assert.Equal(t, "Failed to verify domain: rate limited", err.Error())

	rec, err := store.Domain(ctx, "mybrand.com")
	require.NoError(t, err)
	assert.True(t, rec.Verified)

	// Passing check.
	prov.verErr = ""
	prov.verifyOK = true
	v, err = svc.VerifyDomain(ctx, "mybrand.com")
	require.NoError(t, err)
	assert.Equal(t, MsgVerified, v.Message)
	assert.Equal(t, StepComplete, v.Step)
}

func TestVerificationDetailsAndDNS(t *testing.T) {
	ctx := context.Background()
	svc, _, prov, _ := newService(t)

	prov.details = provider.DetailsResult{
		Result:       provider.Result{Success: true},
		Verification: []provider.Verification{{Type: "TXT", Domain: "_vercel.a.com", Value: "x"}},
	}
	prov.dns = provider.DNSResult{Result: provider.Result{Error: "boom"}}

	d, err := svc.VerificationDetails(ctx, "A.com")
	require.NoError(t, err)
	assert.Len(t, d.Verification, 1)

	_, err = svc.DNSRecords(ctx, "a.com")
	require.Error(t, err)
	assert.Equal(t, "Failed to get DNS records: boom", err.Error())

	prov.details = provider.DetailsResult{Result: provider.Result{Error: "nope"}}
	_, err = svc.VerificationDetails(ctx, "a.com")
	require.Error(t, err)
	assert.Equal(t, "Failed to get verification details: nope", err.Error())

	assert.Equal(t, []string{"details a.com", "dns a.com", "details a.com"}, prov.calls)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, MsgInvalidIcon, UserMessage(&ValidationError{Message: MsgInvalidIcon}))
	assert.Equal(t, MsgGeneric, UserMessage(errors.New("dial tcp: refused")))
}
