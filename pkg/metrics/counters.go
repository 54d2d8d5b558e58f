// Package metrics holds the process-wide performance counters and exposes
// them to Prometheus.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Counters aggregates cumulative totals and, once Service is started, a 1 Hz
// snapshot of per-second rates for entries/watches received and broadcast.
type Counters struct {
	entriesReceived   atomic.Uint64
	entriesBroadcast  atomic.Uint64
	watchesReceived   atomic.Uint64
	watchesBroadcast  atomic.Uint64

	mu         sync.Mutex
	perSecond  Snapshot
	lastTotals totals
}

// Snapshot is a point-in-time view of the per-second rates, taken by the
// 1 Hz ticker in Service.
type Snapshot struct {
	EntriesReceivedPerSec  uint64
	EntriesBroadcastPerSec uint64
	WatchesReceivedPerSec  uint64
	WatchesBroadcastPerSec uint64
}

type totals struct {
	entriesReceived, entriesBroadcast, watchesReceived, watchesBroadcast uint64
}

// New creates a Counters, registering its cumulative counters with reg (which
// may be nil to skip Prometheus registration, e.g. in tests).
func New(reg prometheus.Registerer) *Counters {
	c := &Counters{}
	if reg != nil {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "logrooms", Name: "entries_received_total",
		}, func() float64 { return float64(c.entriesReceived.Load()) }))
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "logrooms", Name: "entries_broadcast_total",
		}, func() float64 { return float64(c.entriesBroadcast.Load()) }))
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "logrooms", Name: "watches_received_total",
		}, func() float64 { return float64(c.watchesReceived.Load()) }))
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "logrooms", Name: "watches_broadcast_total",
		}, func() float64 { return float64(c.watchesBroadcast.Load()) }))
	}
	return c
}

func (c *Counters) IncEntriesReceived()  { c.entriesReceived.Inc() }
func (c *Counters) IncEntriesBroadcast() { c.entriesBroadcast.Inc() }
func (c *Counters) IncWatchesReceived()  { c.watchesReceived.Inc() }
func (c *Counters) IncWatchesBroadcast() { c.watchesBroadcast.Inc() }

// Totals returns the cumulative counts since process start.
func (c *Counters) Totals() (entriesReceived, entriesBroadcast, watchesReceived, watchesBroadcast uint64) {
	return c.entriesReceived.Load(), c.entriesBroadcast.Load(), c.watchesReceived.Load(), c.watchesBroadcast.Load()
}

// PerSecond returns the most recent 1 Hz snapshot.
func (c *Counters) PerSecond() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perSecond
}

// tick snapshots the per-second delta and resets the tracking baseline;
// Service drives it from a 1 s ticker.
func (c *Counters) tick() {
	er, eb, wr, wb := c.Totals()
	c.mu.Lock()
	c.perSecond = Snapshot{
		EntriesReceivedPerSec:  er - c.lastTotals.entriesReceived,
		EntriesBroadcastPerSec: eb - c.lastTotals.entriesBroadcast,
		WatchesReceivedPerSec:  wr - c.lastTotals.watchesReceived,
		WatchesBroadcastPerSec: wb - c.lastTotals.watchesBroadcast,
	}
	c.lastTotals = totals{er, eb, wr, wb}
	c.mu.Unlock()
}

// Service wraps Counters in a services.Service that drives the 1 Hz
// snapshot ticker.
type Service struct {
	services.Service
	counters *Counters
}

// NewService returns a Service driving c's per-second snapshot.
func NewService(c *Counters) *Service {
	s := &Service{counters: c}
	s.Service = services.NewBasicService(nil, s.running, nil)
	return s
}

func (s *Service) running(ctx context.Context) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.counters.tick()
		}
	}
}
