package traceagg

import (
	"testing"
	"time"

	"github.com/grafana/logrooms/pkg/entrystore"
	"github.com/stretchr/testify/require"
)

func entryWithCtx(id uint64, ts time.Time, level entrystore.Level, ctx map[string]string) *entrystore.Entry {
	return &entrystore.Entry{ID: id, Timestamp: ts, Level: level, Ctx: ctx, AppName: "app", SessionName: "sess"}
}

// Trace assembly with a late-arriving parent span.
func TestTraceAssemblyWithLateParent(t *testing.T) {
	a := New(time.Minute, 10)
	now := time.Now()

	child := entryWithCtx(1, now, entrystore.Message, map[string]string{
		entrystore.CtxTraceID:      "T",
		entrystore.CtxSpanID:       "B",
		entrystore.CtxParentSpanID: "A",
		entrystore.CtxSpanName:     "child",
	})
	a.Process(child, now)

	root := entryWithCtx(2, now.Add(time.Millisecond), entrystore.Message, map[string]string{
		entrystore.CtxTraceID:        "T",
		entrystore.CtxSpanID:         "A",
		entrystore.CtxSpanName:       "root",
		entrystore.CtxSpanDurationMs: "50",
	})
	a.Process(root, now.Add(time.Millisecond))

	tr, ok := a.GetTrace("T")
	require.True(t, ok)
	require.Len(t, tr.Spans, 2)
	require.Equal(t, "root", tr.RootSpanName)

	tree, ok := a.GetSpanTree("T")
	require.True(t, ok)
	require.Len(t, tree, 1)
	require.Equal(t, "root", tree[0].Name)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, "child", tree[0].Children[0].Name)
}

func TestUnknownParentGetsPlaceholder(t *testing.T) {
	a := New(time.Minute, 10)
	now := time.Now()
	e := entryWithCtx(1, now, entrystore.Message, map[string]string{
		entrystore.CtxTraceID:      "T",
		entrystore.CtxSpanID:       "B",
		entrystore.CtxParentSpanID: "missing",
	})
	a.Process(e, now)

	tr, ok := a.GetTrace("T")
	require.True(t, ok)
	parent, ok := tr.Spans["missing"]
	require.True(t, ok)
	require.Equal(t, "unknown", parent.Name)
	require.True(t, parent.Placeholder)
	require.Contains(t, parent.ChildSpanIDs, "B")
}

func TestHasErrorFromLevel(t *testing.T) {
	a := New(time.Minute, 10)
	now := time.Now()
	e := entryWithCtx(1, now, entrystore.Error, map[string]string{entrystore.CtxTraceID: "T"})
	a.Process(e, now)

	tr, ok := a.GetTrace("T")
	require.True(t, ok)
	require.True(t, tr.HasError)
	require.Equal(t, 1, tr.ErrorCount)
}

func TestEntryWithoutTraceIDIgnored(t *testing.T) {
	a := New(time.Minute, 10)
	e := &entrystore.Entry{ID: 1}
	a.Process(e, time.Now())
	_, ok := a.GetTrace("")
	require.False(t, ok)
}

func TestSweepMovesIdleTracesToCompleted(t *testing.T) {
	a := New(time.Minute, 10)
	now := time.Now()
	e := entryWithCtx(1, now, entrystore.Message, map[string]string{entrystore.CtxTraceID: "T"})
	a.Process(e, now)

	moved := a.Sweep(now.Add(30 * time.Second))
	require.Empty(t, moved)

	moved = a.Sweep(now.Add(2 * time.Minute))
	require.Equal(t, []string{"T"}, moved)

	tr, ok := a.GetTrace("T")
	require.True(t, ok)
	require.True(t, tr.Completed)
}

func TestCompletedRingIsBounded(t *testing.T) {
	a := New(time.Minute, 2)
	now := time.Now()
	for _, id := range []string{"T1", "T2", "T3"} {
		e := entryWithCtx(1, now, entrystore.Message, map[string]string{entrystore.CtxTraceID: id})
		a.Process(e, now)
	}
	a.Sweep(now.Add(time.Hour))

	_, ok := a.GetTrace("T1")
	require.False(t, ok, "oldest completed trace should have been evicted")
	_, ok = a.GetTrace("T3")
	require.True(t, ok)
}

func TestListTracesFiltersByStatus(t *testing.T) {
	a := New(time.Minute, 10)
	now := time.Now()
	ok1 := entryWithCtx(1, now, entrystore.Message, map[string]string{entrystore.CtxTraceID: "ok-trace", entrystore.CtxSpanID: "s1", entrystore.CtxSpanName: "ok-root"})
	a.Process(ok1, now)
	errTrace := entryWithCtx(2, now, entrystore.Error, map[string]string{entrystore.CtxTraceID: "err-trace", entrystore.CtxSpanID: "s2", entrystore.CtxSpanName: "err-root"})
	a.Process(errTrace, now)

	errs, total := a.ListTraces(ListFilter{Status: StatusFilterError})
	require.Equal(t, 1, total)
	require.Equal(t, "err-trace", errs[0].TraceID)

	oks, total := a.ListTraces(ListFilter{Status: StatusFilterOK})
	require.Equal(t, 1, total)
	require.Equal(t, "ok-trace", oks[0].TraceID)
}

func TestSpanTreeAcyclicInvariant(t *testing.T) {
	a := New(time.Minute, 10)
	now := time.Now()
	for i, pair := range []struct{ span, parent string }{
		{"A", ""}, {"B", "A"}, {"C", "B"}, {"D", "A"},
	} {
		ctx := map[string]string{entrystore.CtxTraceID: "T", entrystore.CtxSpanID: pair.span}
		if pair.parent != "" {
			ctx[entrystore.CtxParentSpanID] = pair.parent
		}
		a.Process(entryWithCtx(uint64(i+1), now, entrystore.Message, ctx), now)
	}

	tree, ok := a.GetSpanTree("T")
	require.True(t, ok)
	require.Len(t, tree, 1)
	require.Equal(t, "A", tree[0].SpanID)
	require.Len(t, tree[0].Children, 2)
}
