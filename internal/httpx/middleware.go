package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/ariefcatur/go-order-settlement/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Observe extracts trace context, puts a request-scoped logger in the
// context, then logs and counts the request.
func Observe(base *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := telemetry.Extract(r.Context(), r.Header)

			fields := []zap.Field{zap.String("request_id", middleware.GetReqID(ctx))}
			if tid := telemetry.TraceID(ctx); tid != "" {
				fields = append(fields, zap.String("trace_id", tid))
			}
			log := base.With(fields...)
			ctx = logging.WithContext(ctx, log)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			route := "unmatched"
			if rc := chi.RouteContext(ctx); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			d := time.Since(start)
			m.ObserveHTTP(r.Method, route, rec.status, d)
			log.Info("http_request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Duration("duration", d),
			)
		})
	}
}
