// internal/utils/metrics/collector.go
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/dlmm-tracker/internal/events"
)

// Collector управляет метриками циклов обновления позиций
type Collector struct {
	registry  *prometheus.Registry
	attempts  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	cycles    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	positions prometheus.Gauge

	mu      sync.Mutex
	started map[cycleKey]time.Time
}

type cycleKey struct {
	account string
	trigger events.Trigger
}

// NewCollector создает коллектор с собственным registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dlmm_tracker_fetch_attempts_total",
			Help: "Fetch attempts started, by trigger",
		}, []string{"trigger"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dlmm_tracker_fetch_retries_total",
			Help: "Failed attempts that were retried, by trigger",
		}, []string{"trigger"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dlmm_tracker_refresh_cycles_total",
			Help: "Completed refresh cycles, by trigger and result",
		}, []string{"trigger", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dlmm_tracker_refresh_duration_seconds",
			Help:    "Refresh cycle duration including retry delays",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"trigger"}),
		positions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dlmm_tracker_positions",
			Help: "Positions held after the last successful refresh",
		}),
		started: make(map[cycleKey]time.Time),
	}
	c.registry.MustRegister(c.attempts, c.retries, c.cycles, c.duration, c.positions)
	return c
}

// Registry возвращает registry для экспорта
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler отдает метрики в формате Prometheus
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Attach подписывает коллектор на события обновления
func (c *Collector) Attach(bus *events.Bus) []events.Subscription {
	h := events.Typed(func(_ context.Context, e events.RefreshEvent) error {
		c.Observe(e)
		return nil
	})
	types := []events.EventType{
		events.RefreshStarted, events.RefreshRetrying, events.RefreshSucceeded, events.RefreshFailed,
	}
	subs := make([]events.Subscription, 0, len(types))
	for _, t := range types {
		subs = append(subs, bus.Subscribe(t, h))
	}
	return subs
}

// Observe записывает одно событие обновления
func (c *Collector) Observe(e events.RefreshEvent) {
	trigger := string(e.Trigger)
	key := cycleKey{account: e.Account, trigger: e.Trigger}

	switch e.Type() {
	case events.RefreshStarted:
		c.attempts.WithLabelValues(trigger).Inc()
		if e.Attempt == 1 {
			c.mu.Lock()
			c.started[key] = e.Timestamp()
			c.mu.Unlock()
		}
	case events.RefreshRetrying:
		c.retries.WithLabelValues(trigger).Inc()
	case events.RefreshSucceeded:
		c.cycles.WithLabelValues(trigger, "success").Inc()
		c.positions.Set(float64(e.Positions))
		c.observeDuration(key, e.Timestamp())
	case events.RefreshFailed:
		c.cycles.WithLabelValues(trigger, "failed").Inc()
		c.observeDuration(key, e.Timestamp())
	}
}

func (c *Collector) observeDuration(key cycleKey, end time.Time) {
	c.mu.Lock()
	start, ok := c.started[key]
	delete(c.started, key)
	c.mu.Unlock()

	if ok && !end.Before(start) {
		c.duration.WithLabelValues(string(key.trigger)).Observe(end.Sub(start).Seconds())
	}
}
