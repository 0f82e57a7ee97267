// internal/middleware/middleware_test.go
//
// Unit-tests for the ambient HTTP wrappers.
//
// Context
// -------
// Each wrapper is driven with httptest against a trivial next handler:
//
//   • ForceHTTPS    – redirect plain HTTP, skip TLS, proxies, and localhost
//   • Security      – headers present, handler overrides respected
//   • RequestID     – inbound id reused, junk replaced
//   • AccessLog     – one line with status, bytes, and added fields
//   • RateLimiter   – per-IP buckets, 429 with Retry-After
//
// Notes
// -----
// • Oxford commas, two spaces after periods.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var ok200 = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("hello"))
})

func TestForceHTTPS(t *testing.T) {
	h := ForceHTTPS(ok200)

	cases := []struct {
		host   string
		proto  string
		status int
	}{
		{"example.com", "", http.StatusPermanentRedirect},
		{"example.com", "https", http.StatusOK},
		{"localhost:3000", "", http.StatusOK},
		{"acme.localhost:3000", "", http.StatusOK},
		{"127.0.0.1:8080", "", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/s/acme?x=1", nil)
		req.Host = tc.host
		if tc.proto != "" {
			req.Header.Set("X-Forwarded-Proto", tc.proto)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.host, rr.Code, tc.status)
		}
		if tc.status == http.StatusPermanentRedirect {
			if loc := rr.Header().Get("Location"); loc != "https://example.com/s/acme?x=1" {
				t.Fatalf("Location = %q", loc)
			}
		}
	}
}

func TestSecurity(t *testing.T) {
	custom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	Security(custom).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rr.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Fatalf("handler override lost: %q", got)
	}
	for _, kv := range securityHeaders {
		if rr.Header().Get(kv[0]) == "" {
			t.Fatalf("%s missing", kv[0])
		}
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != inbound || rr.Header().Get(RequestIDHeader) != inbound {
		t.Fatalf("inbound id not reused: ctx=%q header=%q", seen, rr.Header().Get(RequestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("junk id kept: %q", seen)
	}
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := RequestID(AccessLog(zap.New(core))(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			AddLogField(r.Context(), zap.String("tenant", "acme"))
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short"))
		})))

	req := httptest.NewRequest(http.MethodPost, "/admin/domains", nil)
	req.Host = "example.com"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if logs.Len() != 1 {
		t.Fatalf("got %d lines, want 1", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("status field = %v", fields["status"])
	}
	if fields["bytes"] != int64(5) || fields["tenant"] != "acme" || fields["path"] != "/admin/domains" {
		t.Fatalf("fields = %v", fields)
	}
	if fields["request_id"] == "" {
		t.Fatal("request_id empty")
	}
}

func TestAccessLog_ServerErrorWarns(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if logs.Len() != 1 || logs.All()[0].Level != zapcore.WarnLevel {
		t.Fatalf("want one WARN line, got %v", logs.All())
	}
}

func TestAddLogField_OutsideAccessLog(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	AddLogField(req.Context(), zap.String("k", "v")) // must not panic
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	h := rl.Limit(ok200)
	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if hit("192.0.2.1") != 200 || hit("192.0.2.1") != 200 {
		t.Fatal("burst not honoured")
	}
	if code := hit("192.0.2.1"); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
	if hit("192.0.2.2") != 200 {
		t.Fatal("other client throttled")
	}

	clock = clock.Add(time.Second)
	if hit("192.0.2.1") != 200 {
		t.Fatal("bucket did not refill")
	}
}

func TestRateLimiter_SweepsIdle(t *testing.T) {
	rl := NewRateLimiter(5, 5)
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	rl.Allow("a")
	clock = clock.Add(2 * idleTTL)
	rl.Allow("b")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.clients["a"]; ok {
		t.Fatal("idle client kept")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !rl.Allow("x") {
			t.Fatal("disabled limiter refused")
		}
	}
}
