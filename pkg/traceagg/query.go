package traceagg

import (
	"sort"
	"strings"
)

// GetTrace consults active traces first, then completed.
func (a *Aggregator) GetTrace(id string) (*Trace, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if tr, ok := a.active[id]; ok {
		return tr, true
	}
	return a.done.get(id)
}

// GetSpanTree returns the reconstructed span tree for a trace, rooted at
// every span with no parent, with children sorted by start time at each
// level. It operates the same way whether the trace is active or
// completed — both are the same map[string]*Span representation.
func (a *Aggregator) GetSpanTree(id string) ([]*SpanNode, bool) {
	tr, ok := a.GetTrace(id)
	if !ok {
		return nil, false
	}
	return buildSpanTree(tr), true
}

func buildSpanTree(tr *Trace) []*SpanNode {
	roots := make([]string, 0, len(tr.RootSpanIDs))
	seen := make(map[string]struct{})
	for _, id := range tr.RootSpanIDs {
		if _, ok := tr.Spans[id]; ok {
			roots = append(roots, id)
			seen[id] = struct{}{}
		}
	}
	// Reconstruct any roots not captured in RootSpanIDs (e.g. a completed
	// trace rehydrated from a denormalised representation): any
	// span with no parent, or whose parent does not exist, is a root.
	for id, sp := range tr.Spans {
		if _, already := seen[id]; already {
			continue
		}
		if _, parentExists := tr.Spans[sp.ParentSpanID]; sp.ParentSpanID == "" || !parentExists {
			roots = append(roots, id)
			seen[id] = struct{}{}
		}
	}

	var walk func(id string, depth int) *SpanNode
	walk = func(id string, depth int) *SpanNode {
		sp := tr.Spans[id]
		node := &SpanNode{Span: sp, Depth: depth}
		children := append([]string(nil), sp.ChildSpanIDs...)
		sort.Slice(children, func(i, j int) bool {
			return tr.Spans[children[i]].StartTime.Before(tr.Spans[children[j]].StartTime)
		})
		for _, c := range children {
			if _, ok := tr.Spans[c]; ok {
				node.Children = append(node.Children, walk(c, depth+1))
			}
		}
		return node
	}

	sort.Slice(roots, func(i, j int) bool {
		return tr.Spans[roots[i]].StartTime.Before(tr.Spans[roots[j]].StartTime)
	})

	out := make([]*SpanNode, 0, len(roots))
	for _, id := range roots {
		out = append(out, walk(id, 0))
	}
	return out
}

// StatusFilter narrows ListTraces by trace error state.
type StatusFilter string

const (
	StatusFilterAll   StatusFilter = "all"
	StatusFilterOK    StatusFilter = "ok"
	StatusFilterError StatusFilter = "error"
)

// SortBy selects ListTraces ordering.
type SortBy string

const (
	SortRecent    SortBy = "recent"
	SortDuration  SortBy = "duration"
	SortSpanCount SortBy = "spanCount"
)

// ListFilter narrows and orders ListTraces.
type ListFilter struct {
	Status       StatusFilter
	MinDuration  int64 // nanoseconds, 0 = unbounded
	MaxDuration  int64 // nanoseconds, 0 = unbounded
	Substring    string
	SortBy       SortBy
	Offset       int
	Limit        int
}

// ListTraces unions active and completed trace summaries, filters, sorts,
// and paginates them.
func (a *Aggregator) ListTraces(f ListFilter) ([]Summary, int) {
	a.mu.Lock()
	summaries := make([]Summary, 0, len(a.active)+len(a.done.order))
	for _, tr := range a.active {
		summaries = append(summaries, tr.summary())
	}
	for _, tr := range a.done.all() {
		summaries = append(summaries, tr.summary())
	}
	a.mu.Unlock()

	filtered := summaries[:0:0]
	for _, s := range summaries {
		if !matchesListFilter(s, f) {
			continue
		}
		filtered = append(filtered, s)
	}

	switch f.SortBy {
	case SortDuration:
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].Duration > filtered[j].Duration })
	case SortSpanCount:
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].SpanCount > filtered[j].SpanCount })
	default:
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].EndTime.After(filtered[j].EndTime) })
	}

	total := len(filtered)
	offset := f.Offset
	if offset > total {
		offset = total
	}
	filtered = filtered[offset:]
	if f.Limit > 0 && f.Limit < len(filtered) {
		filtered = filtered[:f.Limit]
	}
	return filtered, total
}

func matchesListFilter(s Summary, f ListFilter) bool {
	switch f.Status {
	case StatusFilterOK:
		if s.HasError {
			return false
		}
	case StatusFilterError:
		if !s.HasError {
			return false
		}
	}
	if f.MinDuration > 0 && int64(s.Duration) < f.MinDuration {
		return false
	}
	if f.MaxDuration > 0 && int64(s.Duration) > f.MaxDuration {
		return false
	}
	if f.Substring != "" {
		needle := strings.ToLower(f.Substring)
		if !strings.Contains(strings.ToLower(s.RootSpanName), needle) &&
			!strings.Contains(strings.ToLower(s.TraceID), needle) {
			return false
		}
	}
	return true
}
