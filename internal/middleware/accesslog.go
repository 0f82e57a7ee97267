// internal/middleware/accesslog.go
//
// One structured log line per request.
//
// Context
// -------
// AccessLog runs after RequestID and requestinfo.Enrich.  Inner middleware
// that learns something worth logging (the hostname router's class and
// tenant, for instance) attaches it with AddLogField; the line is written
// once the response is complete.
//
// Fields
// ------
//   method, host, path, status, bytes, duration, request_id, plus the UA
//   and geo fields from requestinfo when present.
//
// Notes
// -----
// • 5xx responses log at WARN, everything else at INFO.
// • Oxford commas, two spaces after periods.
package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/taubermatt/platform/internal/requestinfo"
)

type logFieldsKey struct{}

type logFields struct {
	fields []zap.Field
}

// AddLogField appends f to the current request's access-log line.  No-op
// outside AccessLog.
func AddLogField(ctx context.Context, f ...zap.Field) {
	if lf, ok := ctx.Value(logFieldsKey{}).(*logFields); ok {
		lf.fields = append(lf.fields, f...)
	}
}

// AccessLog logs each request to log.
func AccessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lf := &logFields{}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			method, host, path := r.Method, r.Host, r.URL.Path
			ctx := context.WithValue(r.Context(), logFieldsKey{}, lf)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("method", method),
				zap.String("host", host),
				zap.String("path", path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", GetRequestID(ctx)),
			}
			if info := requestinfo.FromContext(ctx); info != nil {
				fields = append(fields,
					zap.String("browser", info.UA.Browser),
					zap.String("device", info.UA.Device),
					zap.Bool("bot", info.UA.IsBot),
					zap.String("country", info.Geo.CountryISO),
				)
			}
			fields = append(fields, lf.fields...)

			if status >= 500 {
				log.Warn("request", fields...)
				return
			}
			log.Info("request", fields...)
		})
	}
}
