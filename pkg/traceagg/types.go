// Package traceagg reconstructs span trees from individual log entries
// tagged with trace/span identifiers. Traces accumulate in an active map
// and age into a bounded completed ring after a silence timeout.
package traceagg

import "time"

// SpanStatus mirrors the ctx._spanStatus vocabulary; any value other than
// "error" (case-insensitive) is treated as non-error.
type SpanStatus string

const (
	StatusUnset SpanStatus = ""
	StatusOK    SpanStatus = "ok"
	StatusError SpanStatus = "error"
)

// Span is one operation within a trace.
type Span struct {
	SpanID            string
	ParentSpanID      string
	Name              string
	Kind              string
	StartTime         time.Time
	EndTime           time.Time
	HasEndTime        bool
	Duration          time.Duration
	Status            SpanStatus
	StatusDescription string
	EntryIDs          []uint64
	ChildSpanIDs      []string

	// Placeholder is true for a synthesized parent created because a
	// child referenced a ParentSpanID that had not yet been seen.
	Placeholder bool
}

// Trace is a set of causally related spans sharing a traceId.
type Trace struct {
	TraceID      string
	RootSpanName string
	StartTime    time.Time
	EndTime      time.Time
	Spans        map[string]*Span
	RootSpanIDs  []string
	EntryIDs     []uint64
	Apps         map[string]struct{}
	Sessions     map[string]struct{}
	HasError     bool
	ErrorCount   int
	LastUpdated  time.Time
	Completed    bool
}

func newTrace(id string) *Trace {
	return &Trace{
		TraceID:  id,
		Spans:    make(map[string]*Span),
		Apps:     make(map[string]struct{}),
		Sessions: make(map[string]struct{}),
	}
}

func (t *Trace) widen(ts time.Time) {
	if t.StartTime.IsZero() || ts.Before(t.StartTime) {
		t.StartTime = ts
	}
	if ts.After(t.EndTime) {
		t.EndTime = ts
	}
}

// SpanNode is a depth-annotated span within a reconstructed tree, as
// returned by GetSpanTree.
type SpanNode struct {
	*Span
	Depth    int
	Children []*SpanNode
}

// Summary is the lightweight view of a trace used by ListTraces, avoiding a
// full span-tree walk for every row.
type Summary struct {
	TraceID      string
	RootSpanName string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	SpanCount    int
	HasError     bool
	ErrorCount   int
	Apps         []string
	Sessions     []string
	Completed    bool
}

// Summary returns the lightweight view of t used by list/broadcast paths
// outside this package (e.g. the subscription manager's trace-summary
// fan-out).
func (t *Trace) Summary() Summary {
	return t.summary()
}

func (t *Trace) summary() Summary {
	apps := make([]string, 0, len(t.Apps))
	for a := range t.Apps {
		apps = append(apps, a)
	}
	sessions := make([]string, 0, len(t.Sessions))
	for s := range t.Sessions {
		sessions = append(sessions, s)
	}
	return Summary{
		TraceID:      t.TraceID,
		RootSpanName: t.RootSpanName,
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		Duration:     t.EndTime.Sub(t.StartTime),
		SpanCount:    len(t.Spans),
		HasError:     t.HasError,
		ErrorCount:   t.ErrorCount,
		Apps:         apps,
		Sessions:     sessions,
		Completed:    t.Completed,
	}
}
