package reporting

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes a Prometheus /metrics endpoint instrumenting the
// BuildBenchmarkPool and CEEngine. The teacher's monitoring/prometheus
// package queries an external Prometheus server; this is the inverse use
// of the same library family — exposition rather than querying — wired
// because a CE search run has nothing external to query against.
type Metrics struct {
	server *http.Server

	jobsTotal       *prometheus.CounterVec
	cacheHitsTotal  prometheus.Counter
	compileFailures prometheus.Counter
	benchDuration   prometheus.Histogram
	iterationCount  prometheus.Gauge
	baselineScore   prometheus.Gauge
	cacheSize       prometheus.Gauge
}

// NewMetrics registers the ceflags metric family against a fresh
// registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ceflags",
			Name:      "jobs_total",
			Help:      "Jobs processed by the build/benchmark pool, by outcome.",
		}, []string{"outcome"}),
		cacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ceflags",
			Name:      "cache_hits_total",
			Help:      "Jobs whose score was served from the result cache.",
		}),
		compileFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ceflags",
			Name:      "compile_failures_total",
			Help:      "Jobs that produced no score (compile or benchmark failure).",
		}),
		benchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ceflags",
			Name:      "benchmark_duration_seconds",
			Help:      "Wall-clock duration of benchmark invocations.",
			Buckets:   prometheus.DefBuckets,
		}),
		iterationCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ceflags",
			Name:      "iteration",
			Help:      "Current CEEngine iteration number.",
		}),
		baselineScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ceflags",
			Name:      "baseline_score",
			Help:      "Most recently measured baseline score.",
		}),
		cacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ceflags",
			Name:      "cache_entries",
			Help:      "Distinct checksums currently held in the result cache.",
		}),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	m.server = &http.Server{Handler: mux}
	return m
}

// ObserveJob records the outcome of one pool job. A job with ok false is
// counted in compile_failures_total whether its compile or its benchmark
// failed; the two are not told apart.
func (m *Metrics) ObserveJob(ok bool, cacheHit bool) {
	if !ok {
		m.jobsTotal.WithLabelValues("failure").Inc()
		m.compileFailures.Inc()
		return
	}
	if cacheHit {
		m.jobsTotal.WithLabelValues("cache_hit").Inc()
		m.cacheHitsTotal.Inc()
		return
	}
	m.jobsTotal.WithLabelValues("measured").Inc()
}

// ObserveBenchmarkDuration records how long a benchmark invocation took.
func (m *Metrics) ObserveBenchmarkDuration(d time.Duration) {
	m.benchDuration.Observe(d.Seconds())
}

// SetIteration records the current CEEngine iteration number.
func (m *Metrics) SetIteration(n int) {
	m.iterationCount.Set(float64(n))
}

// SetBaseline records the most recent baseline score.
func (m *Metrics) SetBaseline(score float64) {
	m.baselineScore.Set(score)
}

// SetCacheSize records the result cache's current entry count.
func (m *Metrics) SetCacheSize(n int) {
	m.cacheSize.Set(float64(n))
}

// Serve starts the metrics HTTP server on addr. It blocks until ctx is
// canceled, at which point it shuts the server down gracefully.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	m.server.Addr = addr

	errCh := make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
