package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livesite"

type PrometheusRecorder struct {
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	entries       prom.Gauge
	siteVersion   prom.Gauge
	watcherEvents *prom.CounterVec
	watcherErrors prom.Counter
}

// NewPrometheusRecorder creates the metrics and registers them with reg (a new registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of full site builds",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Site builds by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		entries: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Entries in the live site",
		}),
		siteVersion: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "site_version",
			Help:      "Number of snapshots swapped in since start",
		}),
		watcherEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_events_total",
			Help:      "Filesystem events that triggered a rebuild",
		}, []string{"op"}),
		watcherErrors: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_errors_total",
			Help:      "Errors reported by the filesystem watcher",
		}),
	}

	reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.entries, pr.siteVersion, pr.watcherEvents, pr.watcherErrors)

	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(trigger Trigger, outcome Outcome) {
	p.buildOutcome.WithLabelValues(string(trigger), string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetEntries(n int) {
	p.entries.Set(float64(n))
}

func (p *PrometheusRecorder) SetSiteVersion(v uint64) {
	p.siteVersion.Set(float64(v))
}

func (p *PrometheusRecorder) IncWatcherEvent(op string) {
	p.watcherEvents.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) IncWatcherError() {
	p.watcherErrors.Inc()
}

// HTTPHandler serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
