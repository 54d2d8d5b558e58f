package traceagg

import (
	"sort"
	"time"
)

// Sweep moves every active trace idle for longer than the configured
// timeout into the completed ring, dropping its spanId->traceId index
// entries. It is meant to be called periodically (e.g. from a
// services.Service ticker loop) and returns the ids of traces moved, for
// the fan-out layer to notify subscribers.
func (a *Aggregator) Sweep(now time.Time) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idle []*Trace
	for _, tr := range a.active {
		if now.Sub(tr.LastUpdated) > a.timeout {
			idle = append(idle, tr)
		}
	}
	// Oldest first, so the completed ring evicts the least recent trace.
	sort.Slice(idle, func(i, j int) bool {
		if !idle[i].LastUpdated.Equal(idle[j].LastUpdated) {
			return idle[i].LastUpdated.Before(idle[j].LastUpdated)
		}
		return idle[i].TraceID < idle[j].TraceID
	})

	var moved []string
	for _, tr := range idle {
		tr.Completed = true
		a.done.add(tr)
		delete(a.active, tr.TraceID)
		for spanID := range tr.Spans {
			delete(a.spanIdx, spanID)
		}
		moved = append(moved, tr.TraceID)
	}
	return moved
}
