// Package metrics exposes Prometheus counters for the search pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"apartment-scraper/utils"
)

const namespace = "apartment_scraper"

// Listing outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

// Cycle results.
const (
	CycleOK        = "ok"
	CycleFailed    = "failed"
	CycleAbandoned = "abandoned"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	ListingsTotal       *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	ConsecutiveFailures prometheus.Gauge
}

// New creates and registers the collectors on reg, or on the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Search cycles by result",
			},
			[]string{"result"},
		),
		CycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of a search cycle in seconds",
				Buckets:   prometheus.ExponentialBuckets(5, 2, 8), // 5s to ~10min
			},
		),
		ListingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listings_total",
				Help:      "Listings seen by the processor, by outcome",
			},
			[]string{"outcome"},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification attempts by result",
			},
			[]string{"result"},
		),
		ConsecutiveFailures: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "consecutive_cycle_failures",
				Help:      "Cycle failures since the last success or backoff",
			},
		),
	}
}

func (m *Metrics) RecordCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordListing(outcome string) {
	if m == nil {
		return
	}
	m.ListingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordNotification(delivered bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !delivered {
		result = "failed"
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetConsecutiveFailures(n int) {
	if m == nil {
		return
	}
	m.ConsecutiveFailures.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *utils.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("[metrics] Serving /metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
