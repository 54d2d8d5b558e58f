package entrystore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pushTitled(t *testing.T, r *Ring, session, title string, level Level) *Entry {
	t.Helper()
	return r.Push(&Entry{SessionName: session, Title: title, Level: level, Kind: KindMessage})
}

// Ring overflow evicts the oldest entries first.
func TestRingOverflowKeepsNewest(t *testing.T) {
	r := New(4)
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		pushTitled(t, r, "s1", title, Message)
	}

	require.Equal(t, 4, r.Size())

	got := r.GetSince(0)
	require.Len(t, got, 4)
	wantTitles := []string{"b", "c", "d", "e"}
	for i, e := range got {
		require.Equal(t, wantTitles[i], e.Title)
	}
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].ID, got[i].ID)
	}

	stats, ok := r.TagKeyStats("nope")
	require.False(t, ok)
	require.Zero(t, stats)

	res := r.Query(Filter{Sessions: map[string]struct{}{"s1": {}}}, 0, 100)
	require.Equal(t, 4, res.Total)
}

// Level filter query.
func TestLevelFilterQuery(t *testing.T) {
	r := New(10)
	levels := []Level{Debug, Message, Warning, Error, Fatal, Message}
	var ids []uint64
	for _, lvl := range levels {
		e := pushTitled(t, r, "s1", "x", lvl)
		ids = append(ids, e.ID)
	}

	res := r.Query(Filter{Levels: map[Level]struct{}{Error: {}, Fatal: {}}}, 0, 100)
	require.Equal(t, 2, res.Total)
	require.Len(t, res.Entries, 2)
	require.Equal(t, ids[3], res.Entries[0].ID)
	require.Equal(t, ids[4], res.Entries[1].ID)
}

func TestIndexConsistencyAfterEviction(t *testing.T) {
	r := New(3)
	for i := 0; i < 10; i++ {
		session := "s1"
		if i%2 == 0 {
			session = "s2"
		}
		pushTitled(t, r, session, "x", Message)
	}

	total := 0
	for _, session := range []string{"s1", "s2"} {
		res := r.Query(Filter{Sessions: map[string]struct{}{session: {}}}, 0, 100)
		total += res.Total
	}
	require.Equal(t, r.Size(), total)
}

func TestGetByIDAndIDs(t *testing.T) {
	r := New(5)
	e1 := pushTitled(t, r, "s", "a", Message)
	e2 := pushTitled(t, r, "s", "b", Message)

	got, ok := r.GetByID(e1.ID)
	require.True(t, ok)
	require.Equal(t, "a", got.Title)

	_, ok = r.GetByID(99999)
	require.False(t, ok)

	both := r.GetByIDs([]uint64{e2.ID, e1.ID, 99999})
	require.Len(t, both, 2)
}

func TestInvalidRegexIsDropped(t *testing.T) {
	r := New(5)
	pushTitled(t, r, "s", "hello", Message)

	res := r.Query(Filter{TitlePattern: "("}, 0, 100)
	require.Equal(t, 1, res.Total, "invalid regex must be dropped, not fail the query")
}

func TestResizeRejectsInvalidCapacity(t *testing.T) {
	r := New(5)
	err := r.Resize(0)
	require.ErrorIs(t, err, ErrCapacityInvalid)
	require.Equal(t, 5, r.Capacity())
}

func TestResizeKeepsNewest(t *testing.T) {
	r := New(5)
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		pushTitled(t, r, "s", title, Message)
	}
	require.NoError(t, r.Resize(2))
	got := r.GetSince(0)
	require.Len(t, got, 2)
	require.Equal(t, "d", got[0].Title)
	require.Equal(t, "e", got[1].Title)
}

func TestClearKeepsGlobalCounter(t *testing.T) {
	r := New(5)
	pushTitled(t, r, "s", "a", Message)
	r.Clear()
	require.Equal(t, 0, r.Size())
	next := pushTitled(t, r, "s", "b", Message)
	require.Greater(t, next.ID, uint64(1))
}

func TestContextTagIndexStats(t *testing.T) {
	r := New(10)
	r.Push(&Entry{SessionName: "s", Title: "a", Kind: KindMessage, Ctx: map[string]string{"env": "prod"}})
	r.Push(&Entry{SessionName: "s", Title: "b", Kind: KindMessage, Ctx: map[string]string{"env": "prod"}})
	r.Push(&Entry{SessionName: "s", Title: "c", Kind: KindMessage, Ctx: map[string]string{"env": "staging"}})

	stats, ok := r.TagKeyStats("env")
	require.True(t, ok)
	require.Equal(t, 2, stats.UniqueValues)
	require.Equal(t, 3, stats.TotalEntries)

	res := r.Query(Filter{ContextTag: "env=prod"}, 0, 100)
	require.Equal(t, 2, res.Total)
}
