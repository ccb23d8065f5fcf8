package metrics

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dailyping"

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 3}

// Store owns a private Prometheus registry with the monitor's collectors.
type Store struct {
	registry *prometheus.Registry

	probes          *prometheus.CounterVec
	probeLatency    prometheus.Histogram
	gatewayProbes   *prometheus.CounterVec
	reports         *prometheus.CounterVec
	rollovers       prometheus.Counter
	loopFaults      prometheus.Counter
	daySamples      prometheus.Gauge
	ready           prometheus.Gauge
	readyTransition *prometheus.CounterVec
	categoryTotals  *prometheus.CounterVec

	readinessState atomic.Int64
}

// ReadinessCategory captures a categorized readiness reason with severity.
type ReadinessCategory struct {
	Name     string
	Severity string
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	s := &Store{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probes sent to the primary target by outcome.",
		}, []string{"outcome"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Round-trip time of successful probes to the primary target.",
			Buckets:   latencyBuckets,
		}),
		gatewayProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_probes_total",
			Help:      "Diagnostic probes sent to the gateway after a failed primary probe.",
		}, []string{"outcome"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Daily reports by dispatch result.",
		}, []string{"result"}),
		rollovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollovers_total",
			Help:      "Calendar day rollovers observed by the probe loop.",
		}),
		loopFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_faults_total",
			Help:      "Unexpected faults recovered inside the probe loop.",
		}),
		daySamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "day_samples",
			Help:      "Outcomes recorded for the active day.",
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready",
			Help:      "Whether the monitor considers itself ready (1=ready).",
		}),
		readyTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ready_transitions_total",
			Help:      "Count of readiness state transitions by resulting state.",
		}, []string{"state"}),
		categoryTotals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ready_category_transitions_total",
			Help:      "Count of readiness degradations annotated by category.",
		}, []string{"category", "severity"}),
	}
	s.registry.MustRegister(
		s.probes, s.probeLatency, s.gatewayProbes, s.reports, s.rollovers,
		s.loopFaults, s.daySamples, s.ready, s.readyTransition, s.categoryTotals,
	)
	return s
}

// Registry exposes the underlying registry for additional collectors.
func (s *Store) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Store) ObserveProbe(reachable bool, latency time.Duration) {
	if !reachable {
		s.probes.WithLabelValues("unreachable").Inc()
		return
	}
	s.probes.WithLabelValues("reachable").Inc()
	s.probeLatency.Observe(latency.Seconds())
}

func (s *Store) ObserveGatewayProbe(reachable bool) {
	s.gatewayProbes.WithLabelValues(outcomeLabel(reachable)).Inc()
}

func (s *Store) ObserveDaySize(n int) {
	s.daySamples.Set(float64(n))
}

func (s *Store) IncRollovers() {
	s.rollovers.Inc()
}

func (s *Store) IncLoopFaults() {
	s.loopFaults.Inc()
}

func (s *Store) ObserveDispatch(delivered bool) {
	if delivered {
		s.reports.WithLabelValues("delivered").Inc()
		return
	}
	s.reports.WithLabelValues("console_fallback").Inc()
}

// ObserveReadiness records the latest readiness evaluation. Category counters
// only advance on a ready -> not ready transition.
func (s *Store) ObserveReadiness(ready bool, categories []ReadinessCategory) {
	prev := s.readinessState.Load()
	if ready {
		if prev == 0 {
			s.readyTransition.WithLabelValues("ready").Inc()
		}
		s.readinessState.Store(1)
		s.ready.Set(1)
		return
	}
	if prev == 1 {
		s.readyTransition.WithLabelValues("not_ready").Inc()
		for _, cat := range dedupeCategories(categories) {
			s.categoryTotals.WithLabelValues(cat.Name, cat.Severity).Inc()
		}
	}
	s.readinessState.Store(0)
	s.ready.Set(0)
}

// Ready reports the result of the most recent readiness evaluation.
func (s *Store) Ready() bool {
	return s.readinessState.Load() == 1
}

func outcomeLabel(reachable bool) string {
	if reachable {
		return "reachable"
	}
	return "unreachable"
}

func dedupeCategories(categories []ReadinessCategory) []ReadinessCategory {
	if len(categories) == 0 {
		return nil
	}
	seen := make(map[ReadinessCategory]struct{}, len(categories))
	result := make([]ReadinessCategory, 0, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		key := ReadinessCategory{
			Name:     strings.TrimSpace(c.Name),
			Severity: normalizeSeverity(c.Severity),
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}
	return result
}

func normalizeSeverity(severity string) string {
	severity = strings.TrimSpace(strings.ToLower(severity))
	switch severity {
	case "":
		return "unknown"
	case "info", "informational":
		return "info"
	case "warn", "warning":
		return "warning"
	case "critical", "crit":
		return "critical"
	default:
		return severity
	}
}

// NewHTTPHandler returns an http.Handler that serves the store's metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return promhttp.HandlerFor(store.registry, promhttp.HandlerOpts{})
}
