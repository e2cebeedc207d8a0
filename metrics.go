package newsharvest

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace prefixes every metric name.
const MetricsNamespace = "newsharvest"

// Outcome label values.
const (
	OutcomeAccepted   = "accepted"
	OutcomeIncomplete = "incomplete"
	OutcomeFailed     = "failed"

	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"

	OutcomeDelivered = "delivered"
)

// Metrics holds the harvester's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ArticlesTotal   *prometheus.CounterVec
	SitesTotal      *prometheus.CounterVec
	DeliveriesTotal *prometheus.CounterVec
	RunDuration     prometheus.Histogram
}

// NewMetrics creates the collectors on a dedicated registry that also
// carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ArticlesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "articles_total",
			Help:      "Articles processed, by outcome.",
		}, []string{"outcome"}),
		SitesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "sites_total",
			Help:      "Sites scraped, by outcome.",
		}, []string{"outcome"}),
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "deliveries_total",
			Help:      "Webhook deliveries, by outcome.",
		}, []string{"outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one batch run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) article(outcome string) {
	if m != nil {
		m.ArticlesTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) site(outcome string) {
	if m != nil {
		m.SitesTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) delivery(outcome string) {
	if m != nil {
		m.DeliveriesTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) run(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}
