package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the relay's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Fetches       *prometheus.CounterVec
	StatesFetched prometheus.Counter
	Sent          *prometheus.CounterVec
	SendFailures  *prometheus.CounterVec
	Cursor        prometheus.Gauge
	CycleDuration prometheus.Histogram
}

// New registers the relay metrics against reg, defaulting to the global
// registry when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_fetch_total",
			Help: "OpenSky polls, labeled by result (ok, empty, error).",
		}, []string{"result"}),
		StatesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_states_fetched_total",
			Help: "State vectors returned by OpenSky.",
		}),
		Sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Messages delivered to the stream, by partition.",
		}, []string{"partition"}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_send_failures_total",
			Help: "Messages that failed to encode or send, by partition.",
		}, []string{"partition"}),
		Cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_partition_cursor",
			Help: "Next partition the dispatcher will use.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_cycle_duration_seconds",
			Help:    "Wall time of one fetch and dispatch cycle.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
	}

	for name, col := range map[string]prometheus.Collector{
		"relay_fetch_total":            c.Fetches,
		"relay_states_fetched_total":   c.StatesFetched,
		"relay_messages_sent_total":    c.Sent,
		"relay_send_failures_total":    c.SendFailures,
		"relay_partition_cursor":       c.Cursor,
		"relay_cycle_duration_seconds": c.CycleDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return c, nil
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveFetch(states int, err error) {
	if c == nil {
		return
	}
	switch {
	case err != nil:
		c.Fetches.WithLabelValues("error").Inc()
	case states == 0:
		c.Fetches.WithLabelValues("empty").Inc()
	default:
		c.Fetches.WithLabelValues("ok").Inc()
		c.StatesFetched.Add(float64(states))
	}
}

func (c *Collector) ObserveSend(partition string, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.SendFailures.WithLabelValues(partition).Inc()
		return
	}
	c.Sent.WithLabelValues(partition).Inc()
}

func (c *Collector) SetCursor(v int) {
	if c == nil {
		return
	}
	c.Cursor.Set(float64(v))
}

func (c *Collector) ObserveCycle(d time.Duration) {
	if c == nil {
		return
	}
	c.CycleDuration.Observe(d.Seconds())
}
