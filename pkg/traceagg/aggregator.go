package traceagg

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grafana/logrooms/pkg/entrystore"
)

const (
	DefaultTimeout      = 5 * time.Minute
	DefaultCompletedCap = 1000
)

// Aggregator assembles spans into traces and ages idle ones into a bounded
// completed ring.
type Aggregator struct {
	mu      sync.Mutex
	active  map[string]*Trace
	spanIdx map[string]string // spanId -> traceId, active traces only
	done    *completedRing
	timeout time.Duration
}

// New creates an Aggregator with the given idle timeout and completed-ring
// capacity (both fall back to a package default if zero/negative).
func New(timeout time.Duration, completedCap int) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if completedCap <= 0 {
		completedCap = DefaultCompletedCap
	}
	return &Aggregator{
		active:  make(map[string]*Trace),
		spanIdx: make(map[string]string),
		done:    newCompletedRing(completedCap),
		timeout: timeout,
	}
}

// Process ingests one entry already inserted into the room's ring. Entries
// without a ctx._traceId are ignored.
func (a *Aggregator) Process(e *entrystore.Entry, now time.Time) {
	traceID, ok := e.Ctx[entrystore.CtxTraceID]
	if !ok || traceID == "" {
		return
	}

	a.mu.Lock()
	tr, existed := a.active[traceID]
	if !existed {
		tr = newTrace(traceID)
		a.active[traceID] = tr
	}

	tr.LastUpdated = now
	tr.EntryIDs = append(tr.EntryIDs, e.ID)
	if e.AppName != "" {
		tr.Apps[e.AppName] = struct{}{}
	}
	if e.SessionName != "" {
		tr.Sessions[e.SessionName] = struct{}{}
	}
	tr.widen(e.Timestamp)

	status := SpanStatus(strings.ToLower(e.Ctx[entrystore.CtxSpanStatus]))
	if e.Level >= entrystore.Error || status == StatusError {
		if !tr.HasError {
			tr.HasError = true
		}
		tr.ErrorCount++
	}

	if spanID, ok := e.Ctx[entrystore.CtxSpanID]; ok && spanID != "" {
		a.applySpan(tr, e, spanID, status)
	}
	a.mu.Unlock()
}

// applySpan must be called with a.mu held.
func (a *Aggregator) applySpan(tr *Trace, e *entrystore.Entry, spanID string, status SpanStatus) {
	span, ok := tr.Spans[spanID]
	if !ok {
		span = &Span{SpanID: spanID}
		tr.Spans[spanID] = span
	}
	span.Placeholder = false

	if name := e.Ctx[entrystore.CtxSpanName]; name != "" {
		span.Name = name
	}
	if kind := e.Ctx[entrystore.CtxSpanKind]; kind != "" {
		span.Kind = kind
	}
	if status != StatusUnset {
		span.Status = status
		span.StatusDescription = e.Ctx[entrystore.CtxSpanStatusDesc]
	}
	if span.StartTime.IsZero() || e.Timestamp.Before(span.StartTime) {
		span.StartTime = e.Timestamp
	}
	if durMs, ok := parseMillis(e.Ctx[entrystore.CtxSpanDurationMs]); ok {
		span.Duration = time.Duration(durMs) * time.Millisecond
		span.EndTime = span.StartTime.Add(span.Duration)
		span.HasEndTime = true
	}

	span.EntryIDs = append(span.EntryIDs, e.ID)
	a.spanIdx[spanID] = tr.TraceID

	if parentID, ok := e.Ctx[entrystore.CtxParentSpanID]; ok && parentID != "" {
		span.ParentSpanID = parentID
		parent, ok := tr.Spans[parentID]
		if !ok {
			// Unknown parent gets a placeholder rather than failing.
			parent = &Span{SpanID: parentID, Name: "unknown", Placeholder: true}
			tr.Spans[parentID] = parent
		}
		addChildIdempotent(parent, spanID)
	} else {
		addRootIdempotent(tr, spanID)
		if tr.RootSpanName == "" && span.Name != "" {
			tr.RootSpanName = span.Name
		}
	}
}

func addChildIdempotent(parent *Span, child string) {
	for _, c := range parent.ChildSpanIDs {
		if c == child {
			return
		}
	}
	parent.ChildSpanIDs = append(parent.ChildSpanIDs, child)
}

func addRootIdempotent(tr *Trace, spanID string) {
	for _, r := range tr.RootSpanIDs {
		if r == spanID {
			return
		}
	}
	tr.RootSpanIDs = append(tr.RootSpanIDs, spanID)
}

func parseMillis(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Clear discards all active and completed traces.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = make(map[string]*Trace)
	a.spanIdx = make(map[string]string)
	a.done = newCompletedRing(a.done.capacity)
}
