package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVercel records calls and serves canned answers keyed by
// "METHOD path".
type fakeVercel struct {
	mu      sync.Mutex
	calls   []string
	replies map[string]reply
}

type reply struct {
	status int
	body   any
}

func (f *fakeVercel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.calls = append(f.calls, key)
	rep, ok := f.replies[key]
	f.mu.Unlock()

	if !ok {
		rep = reply{status: http.StatusNotFound, body: map[string]any{
			"error": map[string]string{"code": "not_found", "message": "no route " + key},
		}}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	if rep.body != nil {
		_ = json.NewEncoder(w).Encode(rep.body)
	}
}

func (f *fakeVercel) set(key string, rep *reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rep == nil {
		delete(f.replies, key)
		return
	}
	f.replies[key] = *rep
}

func (f *fakeVercel) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestClient(t *testing.T, f *fakeVercel, team string) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(Config{Token: "tok", ProjectID: "proj", TeamID: team, BaseURL: srv.URL}, nil)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{}, nil)

	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultProjectID, c.project)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
	assert.NotNil(t, c.log)
}

func TestClient_AddProjectDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v10/projects/proj/domains", r.URL.Path)
		assert.Equal(t, "team_1", r.URL.Query().Get("teamId"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mybrand.com", body["name"])

		_ = json.NewEncoder(w).Encode(ProjectDomain{Name: "mybrand.com", Verified: false})
	}))
	defer srv.Close()

	c := NewClient(Config{Token: "tok", ProjectID: "proj", TeamID: "team_1", BaseURL: srv.URL}, nil)
	pd, err := c.AddProjectDomain(context.Background(), "mybrand.com")

	require.NoError(t, err)
	assert.Equal(t, "mybrand.com", pd.Name)
	assert.False(t, pd.Verified)
}

func TestClient_APIError(t *testing.T) {
	f := &fakeVercel{replies: map[string]reply{
		"POST /v10/projects/proj/domains": {status: http.StatusConflict, body: map[string]any{
			"error": map[string]string{"code": "domain_taken", "message": "Domain is already in use"},
		}},
	}}
	c := newTestClient(t, f, "")

	_, err := c.AddProjectDomain(context.Background(), "taken.com")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "domain_taken", apiErr.Code)
	assert.Equal(t, "Domain is already in use", err.Error())
}

func TestClient_APIError_NoBody(t *testing.T) {
	f := &fakeVercel{replies: map[string]reply{
		"DELETE /v6/domains/a.com": {status: http.StatusBadGateway},
	}}
	c := newTestClient(t, f, "")

	err := c.DeleteDomain(context.Background(), "a.com")
	require.Error(t, err)
	assert.Equal(t, "vercel: unexpected status 502", err.Error())
}

func TestAdapter_AddDomain(t *testing.T) {
	f := &fakeVercel{replies: map[string]reply{
		"POST /v10/projects/proj/domains": {status: http.StatusOK, body: ProjectDomain{Name: "ok.com"}},
	}}
	a := NewAdapter(newTestClient(t, f, ""), nil)

	assert.Equal(t, Result{Success: true}, a.AddDomain(context.Background(), "ok.com"))

	f.set("POST /v10/projects/proj/domains", nil)
	res := a.AddDomain(context.Background(), "ok.com")
	assert.False(t, res.Success)
	assert.Equal(t, "no route POST /v10/projects/proj/domains", res.Error)
}

func TestAdapter_VerifyDomain(t *testing.T) {
	f := &fakeVercel{replies: map[string]reply{
		"GET /v9/projects/proj/domains/a.com":         {status: http.StatusOK, body: ProjectDomain{Name: "a.com", Verified: false}},
		"POST /v9/projects/proj/domains/a.com/verify": {status: http.StatusOK, body: ProjectDomain{Name: "a.com", Verified: true}},
	}}
	a := NewAdapter(newTestClient(t, f, ""), nil)

	res := a.VerifyDomain(context.Background(), "a.com")
	assert.True(t, res.Success)
	assert.True(t, res.Verified, "verified must come from the verify response")
	assert.ElementsMatch(t, []string{
		"GET /v9/projects/proj/domains/a.com",
		"POST /v9/projects/proj/domains/a.com/verify",
	}, f.seen())
}

func TestAdapter_VerifyDomain_NotYet(t *testing.T) {
	f := &fakeVercel{replies: map[string]reply{
		"GET /v9/projects/proj/domains/a.com":         {status: http.StatusOK, body: ProjectDomain{Name: "a.com"}},
		"POST /v9/projects/proj/domains/a.com/verify": {status: http.StatusOK, body: ProjectDomain{Name: "a.com"}},
	}}
	a := NewAdapter(newTestClient(t, f, ""), nil)

	res := a.VerifyDomain(context.Background(), "a.com")
	assert.True(t, res.Success)
	assert.False(t, res.Verified)
}

func TestAdapter_VerifyDomain_Failure(t *testing.T) {
	f := &fakeVercel{replies: map[string]reply{
		"GET /v9/projects/proj/domains/a.com": {status: http.StatusOK, body: ProjectDomain{Name: "a.com"}},
		"POST /v9/projects/proj/domains/a.com/verify": {status: http.StatusBadRequest, body: map[string]any{
			"error": map[string]string{"code": "missing_txt", "message": "TXT record not found"},
		}},
	}}
	a := NewAdapter(newTestClient(t, f, ""), nil)

	res := a.VerifyDomain(context.Background(), "a.com")
	assert.False(t, res.Success)
	assert.False(t, res.Verified)
	assert.Equal(t, "TXT record not found", res.Error)
}

func TestAdapter_RemoveDomain(t *testing.T) {
	f := &fakeVercel{replies: map[string]reply{
		"DELETE /v9/projects/proj/domains/a.com": {status: http.StatusNoContent},
		"DELETE /v6/domains/a.com":               {status: http.StatusOK, body: map[string]string{"uid": "d1"}},
	}}
	a := NewAdapter(newTestClient(t, f, ""), nil)

	assert.True(t, a.RemoveDomain(context.Background(), "a.com").Success)
	assert.Len(t, f.seen(), 2)

	f.set("DELETE /v6/domains/a.com", nil)
	res := a.RemoveDomain(context.Background(), "a.com")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

// slowDetach is an API whose account delete fails at once while the
// project detach takes a while and honours ctx.
type slowDetach struct {
	API
	detached atomic.Bool
}

func (s *slowDetach) RemoveProjectDomain(ctx context.Context, _ string) error {
	select {
	case <-time.After(50 * time.Millisecond):
		s.detached.Store(true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slowDetach) DeleteDomain(context.Context, string) error {
	return &APIError{Status: http.StatusForbidden, Code: "forbidden", Message: "domain is still assigned"}
}

func TestAdapter_RemoveDomainFinishesBothCalls(t *testing.T) {
	api := &slowDetach{}
	a := NewAdapter(api, nil)

	res := a.RemoveDomain(context.Background(), "a.com")
	assert.False(t, res.Success)
	assert.Equal(t, "domain is still assigned", res.Error)
	assert.True(t, api.detached.Load(), "project detach must not be cancelled by the failed delete")
}

func TestAdapter_DetailsAndDNS(t *testing.T) {
	pd := ProjectDomain{
		Name:     "mybrand.com",
		ApexName: "mybrand.com",
		Verification: []Verification{
			{Type: "TXT", Domain: "_vercel.mybrand.com", Value: "vc-domain-verify=abc", Reason: "pending_domain_verification"},
		},
	}
	f := &fakeVercel{replies: map[string]reply{
		"GET /v9/projects/proj/domains/mybrand.com": {status: http.StatusOK, body: pd},
	}}
	a := NewAdapter(newTestClient(t, f, ""), nil)

	details := a.VerificationDetails(context.Background(), "mybrand.com")
	require.True(t, details.Success)
	assert.False(t, details.Verified)
	assert.Equal(t, pd.Verification, details.Verification)

	dns := a.DNSRecords(context.Background(), "mybrand.com")
	require.True(t, dns.Success)
	assert.Equal(t, []DNSRecord{
		{Type: "A", Name: "@", Value: ApexIP},
		{Type: "TXT", Name: "_vercel.mybrand.com", Value: "vc-domain-verify=abc"},
	}, dns.Records)
}

func TestAdapter_DomainConfig(t *testing.T) {
	f := &fakeVercel{replies: map[string]reply{
		"GET /v6/domains/a.com/config": {status: http.StatusOK, body: DomainConfig{Misconfigured: false}},
		"GET /v6/domains/b.com/config": {status: http.StatusOK, body: DomainConfig{Misconfigured: true}},
	}}
	a := NewAdapter(newTestClient(t, f, ""), nil)

	assert.True(t, a.DomainConfig(context.Background(), "a.com").Configured)
	assert.False(t, a.DomainConfig(context.Background(), "b.com").Configured)
	assert.False(t, a.DomainConfig(context.Background(), "c.com").Success)
}

func TestRecordsFor(t *testing.T) {
	assert.Equal(t, []DNSRecord{{Type: "CNAME", Name: "shop", Value: CNAMETarget}},
		RecordsFor("shop.mybrand.com", &ProjectDomain{}))
	assert.Equal(t, []DNSRecord{{Type: "CNAME", Name: "shop", Value: CNAMETarget}},
		RecordsFor("shop.mybrand.co.uk", &ProjectDomain{ApexName: "mybrand.co.uk"}))
	assert.Equal(t, []DNSRecord{{Type: "A", Name: "@", Value: ApexIP}},
		RecordsFor("mybrand.com", &ProjectDomain{Verification: []Verification{{Type: "CNAME"}}}))
}
