package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics methods are safe on a nil receiver so tests can pass nil.
type Metrics struct {
	useCaseRequests *prometheus.CounterVec
	useCaseDuration *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	dispatches      *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
	settlements     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		useCaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usecase_requests_total",
			Help: "Use case invocations by outcome.",
		}, []string{"use_case", "outcome"}),
		useCaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "usecase_duration_seconds",
			Help:    "Use case latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"use_case"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_dispatch_total",
			Help: "Settlement requests sent to the payment gateway.",
		}, []string{"outcome"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_callbacks_total",
			Help: "Payment webhook callbacks by result.",
		}, []string{"result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_settlements_total",
			Help: "Settlements resolved by the gateway simulator.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.useCaseRequests, m.useCaseDuration,
		m.httpRequests, m.httpDuration,
		m.dispatches, m.callbacks, m.settlements,
	)
	return m
}

// NewRegistry returns a registry preloaded with Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveUseCase(name string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.useCaseRequests.WithLabelValues(name, Outcome(err)).Inc()
	m.useCaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) GatewayDispatch(err error) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(Outcome(err)).Inc()
}

func (m *Metrics) Callback(result string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(result).Inc()
}

func (m *Metrics) Settlement(status string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(status).Inc()
}
