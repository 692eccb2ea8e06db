package service

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signal_bot",
			Subsystem: "tick_stream",
			Name:      "ticks_total",
			Help:      "Derivative ticks by pipeline outcome",
		},
		[]string{"outcome"},
	)
	queueLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "signal_bot",
			Subsystem: "tick_stream",
			Name:      "queue_length",
			Help:      "Dispatch queue length per derivative",
		},
		[]string{"token"},
	)
	activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "signal_bot",
			Subsystem: "tick_stream",
			Name:      "active_streams",
			Help:      "Derivative streams currently supervised",
		},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal, queueLength, activeStreams)
}

type outcome int

const (
	outReceived outcome = iota
	outInvalid
	outDeduped
	outRateLimited
	outDropped
	outSent
	outFailed
	outCount
)

var outcomeNames = [outCount]string{
	"received", "invalid", "deduped", "rate_limited", "dropped", "sent", "failed",
}

// Metrics are lifetime pipeline counters.
type Metrics struct {
	counts [outCount]atomic.Uint64
}

func (m *Metrics) inc(o outcome) {
	m.counts[o].Add(1)
	ticksTotal.WithLabelValues(outcomeNames[o]).Inc()
}

// MetricsSnapshot is a point-in-time view of a pipeline.
type MetricsSnapshot struct {
	Received    uint64
	Invalid     uint64
	Deduped     uint64
	RateLimited uint64
	Dropped     uint64
	Sent        uint64
	Failed      uint64

	QueueLen   int
	PriceCache int
	SentCache  int
}

func (m *Metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Received:    m.counts[outReceived].Load(),
		Invalid:     m.counts[outInvalid].Load(),
		Deduped:     m.counts[outDeduped].Load(),
		RateLimited: m.counts[outRateLimited].Load(),
		Dropped:     m.counts[outDropped].Load(),
		Sent:        m.counts[outSent].Load(),
		Failed:      m.counts[outFailed].Load(),
	}
}

// Sub returns the counter deltas s - prev; gauges are taken from s.
func (s MetricsSnapshot) Sub(prev MetricsSnapshot) MetricsSnapshot {
	s.Received -= prev.Received
	s.Invalid -= prev.Invalid
	s.Deduped -= prev.Deduped
	s.RateLimited -= prev.RateLimited
	s.Dropped -= prev.Dropped
	s.Sent -= prev.Sent
	s.Failed -= prev.Failed
	return s
}
