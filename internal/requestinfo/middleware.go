// internal/requestinfo/middleware.go
//
// Enrich attaches *RequestInfo to every request.
//
// Context
// -------
// Runs after request-ID assignment and before the access log, so each log
// line carries the caller's browser, device, and country alongside the
// routing decision.  The rate limiter keys its buckets on ClientIP.
//
// Notes
// -----
// • Behind the Vercel edge the real client is in X-Vercel-Forwarded-For;
//   generic proxies use X-Forwarded-For or X-Real-Ip.
// • Lookups are read-only.
// • Oxford commas, two spaces after periods.
package requestinfo

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// forwardHeaders are consulted in order before RemoteAddr.
var forwardHeaders = []string{
	"X-Vercel-Forwarded-For",
	"X-Forwarded-For",
	"X-Real-Ip",
}

// Enrich parses the caller once per request and stores the result on the
// context.
func Enrich(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		info := &RequestInfo{
			UA:        parseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
			Geo:       lookupGeo(ip),
			Timestamp: time.Now().UTC(),
		}
		next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
	})
}

// ClientIP returns the first parseable address found in forwardHeaders,
// falling back to r.RemoteAddr.  Nil when nothing parses.
func ClientIP(r *http.Request) net.IP {
	for _, h := range forwardHeaders {
		if ip := firstIP(r.Header.Get(h)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

// firstIP parses the left-most valid entry of a comma-separated list.
func firstIP(list string) net.IP {
	for list != "" {
		var part string
		part, list, _ = strings.Cut(list, ",")
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			return ip
		}
	}
	return nil
}
