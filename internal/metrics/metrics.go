// Package metrics exposes Prometheus counters for the session engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/engine"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Compile-time interface check.
var _ engine.Observer = (*Metrics)(nil)

// Metrics holds the collectors on a private registry so several engines
// (or tests) never collide on the default one.
type Metrics struct {
	reg *prometheus.Registry

	transitions   *prometheus.CounterVec
	phase         prometheus.Gauge
	uploads       *prometheus.CounterVec
	uploadLatency prometheus.Histogram
	stale         *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceask_phase_transitions_total",
			Help: "Session phase transitions",
		}, []string{"from", "to"}),

		phase: f.NewGauge(prometheus.GaugeOpts{
			Name: "voiceask_phase",
			Help: "Current session phase (0=idle, 1=recording, 2=recorded, 3=uploading, 4=awaiting_speech, 5=speaking, 6=failed)",
		}),

		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceask_uploads_total",
			Help: "Inference requests by outcome",
		}, []string{"outcome"}),

		uploadLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceask_upload_latency_seconds",
			Help:    "Inference round trip latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		stale: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceask_stale_events_total",
			Help: "Async completions discarded because the session moved on",
		}, []string{"kind"}),
	}
}

// PhaseChanged implements engine.Observer.
func (m *Metrics) PhaseChanged(from, to domain.Phase) {
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
	m.phase.Set(float64(to))
}

// UploadFinished implements engine.Observer.
func (m *Metrics) UploadFinished(outcome string, latency time.Duration) {
	m.uploads.WithLabelValues(outcome).Inc()
	m.uploadLatency.Observe(latency.Seconds())
}

// StaleDiscarded implements engine.Observer.
func (m *Metrics) StaleDiscarded(kind string) {
	m.stale.WithLabelValues(kind).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics: serving on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
