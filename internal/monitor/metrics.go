package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "strategy_lab"

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	reg *prometheus.Registry

	// Optimizer
	CandidatesEvaluated *prometheus.CounterVec
	OptimizationRuns    *prometheus.CounterVec
	OptimizationSeconds *prometheus.HistogramVec

	// Backtests
	BacktestsTotal  *prometheus.CounterVec
	BacktestSeconds prometheus.Histogram

	// Live trading
	ActiveTraders prometheus.Gauge
	LiveSignals   *prometheus.CounterVec
	OrderFills    *prometheus.CounterVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPSeconds  *prometheus.HistogramVec
}

// NewMetrics registers all collectors on a fresh registry together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		CandidatesEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "candidates_evaluated_total",
			Help:      "Parameter sets scored by the optimizers",
		}, []string{"method", "outcome"}),
		OptimizationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Completed optimization runs",
		}, []string{"method", "status"}),
		OptimizationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "run_duration_seconds",
			Help:      "Wall time of optimization runs",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"method"}),
		BacktestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Backtests executed through the service",
		}, []string{"status"}),
		BacktestSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest wall time including data loading",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveTraders: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "active_traders",
			Help:      "Running live traders",
		}),
		LiveSignals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "signals_total",
			Help:      "Signals forwarded by live traders",
		}, []string{"action"}),
		OrderFills: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "intents_total",
			Help:      "Order intents processed by the sink",
		}, []string{"status"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// CandidateEvaluated counts one scored candidate.
func (m *Metrics) CandidateEvaluated(method string, valid bool) {
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.CandidatesEvaluated.WithLabelValues(method, outcome).Inc()
}

// RunCompleted records the outcome of an optimization run.
func (m *Metrics) RunCompleted(method string, elapsed time.Duration, err error) {
	m.OptimizationRuns.WithLabelValues(method, status(err)).Inc()
	m.OptimizationSeconds.WithLabelValues(method).Observe(elapsed.Seconds())
}

// BacktestCompleted records one backtest.
func (m *Metrics) BacktestCompleted(elapsed time.Duration, err error) {
	m.BacktestsTotal.WithLabelValues(status(err)).Inc()
	m.BacktestSeconds.Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, code string, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, code).Inc()
	m.HTTPSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
