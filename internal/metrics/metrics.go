// Package metrics exposes scheduler activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vmsched/internal/scheduler"
)

// Collector implements scheduler.Reporter.
type Collector struct {
	refreshes     prometheus.Counter
	refreshFails  *prometheus.CounterVec
	refreshTook   prometheus.Histogram
	tags          prometheus.Gauge
	lastRefresh   prometheus.Gauge
	rehydrations  *prometheus.CounterVec
	actions       *prometheus.CounterVec
	actionLatency *prometheus.HistogramVec
}

var _ scheduler.Reporter = (*Collector)(nil)

// New registers the collectors on reg (the default registerer if nil).
// Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vmsched_refresh_total",
			Help: "Completed registry refresh passes",
		}),
		refreshFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vmsched_refresh_failures_total",
			Help: "Refresh failures by stage",
		}, []string{"stage"}),
		refreshTook: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vmsched_refresh_duration_seconds",
			Help:    "Duration of a full refresh pass",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		tags: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vmsched_schedule_tags",
			Help: "Schedule tags in the registry",
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vmsched_last_refresh_timestamp_seconds",
			Help: "Unix time of the last published registry",
		}),
		rehydrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vmsched_session_rebuilds_total",
			Help: "Session rebuilds by reason and result",
		}, []string{"reason", "result"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vmsched_actions_total",
			Help: "Power actions by kind and outcome",
		}, []string{"action", "outcome"}),
		actionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vmsched_action_duration_seconds",
			Help:    "Time spent on one power action",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}

	var err error
	if c.refreshes, err = register(reg, c.refreshes); err != nil {
		return nil, err
	}
	if c.refreshFails, err = register(reg, c.refreshFails); err != nil {
		return nil, err
	}
	if c.refreshTook, err = register(reg, c.refreshTook); err != nil {
		return nil, err
	}
	if c.tags, err = register(reg, c.tags); err != nil {
		return nil, err
	}
	if c.lastRefresh, err = register(reg, c.lastRefresh); err != nil {
		return nil, err
	}
	if c.rehydrations, err = register(reg, c.rehydrations); err != nil {
		return nil, err
	}
	if c.actions, err = register(reg, c.actions); err != nil {
		return nil, err
	}
	if c.actionLatency, err = register(reg, c.actionLatency); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (c *Collector) RefreshDone(tags int, took time.Duration) {
	c.refreshes.Inc()
	c.refreshTook.Observe(took.Seconds())
	c.tags.Set(float64(tags))
	c.lastRefresh.SetToCurrentTime()
}

func (c *Collector) RefreshFailed(stage string, _ error) {
	c.refreshFails.WithLabelValues(stage).Inc()
}

func (c *Collector) Rehydrated(reason string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.rehydrations.WithLabelValues(reason, result).Inc()
}

func (c *Collector) ActionDone(res scheduler.ActionResult) {
	c.actions.WithLabelValues(res.Verb, string(res.Outcome)).Inc()
	c.actionLatency.WithLabelValues(res.Verb).Observe(res.Took.Seconds())
}
