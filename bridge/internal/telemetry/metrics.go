package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every self-metric name.
const Namespace = "chbridge"

// Scrape results used as the "result" label value.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the bridge's own instrumentation. It is registered on a
// private registry so the exposition body and the self-metrics never mix.
type Metrics struct {
	reg *prometheus.Registry

	scrapes        *prometheus.CounterVec
	scrapeDuration prometheus.Histogram
	queryDuration  *prometheus.HistogramVec
	queryErrors    *prometheus.CounterVec
	exportedLines  prometheus.Gauge
	certDaysLeft   prometheus.Gauge
}

// New creates Metrics with Go runtime and process collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		scrapes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scrapes_total",
			Help:      "Scrape requests handled, by result.",
		}, []string{"result"}),
		scrapeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Wall time of a full scrape, all queries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "query_duration_seconds",
			Help:      "Wall time of one configured query, by position.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		queryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "query_errors_total",
			Help:      "Failed query executions, by position.",
		}, []string{"query"}),
		exportedLines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "exported_lines",
			Help:      "Metric lines in the last successful scrape body.",
		}),
		certDaysLeft: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "clickhouse_cert_days_left",
			Help:      "Days until the ClickHouse TLS certificate expires, as seen at startup.",
		}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the self-metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveScrape records one completed scrape. lines is ignored on failure.
func (m *Metrics) ObserveScrape(d time.Duration, lines int, err error) {
	m.scrapeDuration.Observe(d.Seconds())
	if err != nil {
		m.scrapes.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.scrapes.WithLabelValues(ResultSuccess).Inc()
	m.exportedLines.Set(float64(lines))
}

// SetCertDaysLeft records the ClickHouse certificate lifetime.
func (m *Metrics) SetCertDaysLeft(days int) {
	m.certDaysLeft.Set(float64(days))
}

func (m *Metrics) observeQuery(label string, d time.Duration, err error) {
	m.queryDuration.WithLabelValues(label).Observe(d.Seconds())
	if err != nil {
		m.queryErrors.WithLabelValues(label).Inc()
	}
}
