package entrystore

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// TagStats summarizes everything seen under a single context-tag key:
// unique values, total entries carrying the key, and last-seen time.
type TagStats struct {
	UniqueValues int
	TotalEntries int
	LastSeen     time.Time
}

// tagValueBucket holds the entry ids currently carrying one (key, value)
// pair. The value string is hashed with xxhash rather than used directly
// as the map key to keep high-cardinality tag values cheap; collisions
// are accepted as practically impossible for the set of distinct values
// any single process will emit.
type tagValueBucket struct {
	value string
	ids   map[uint64]struct{}
}

type tagKeyIndex struct {
	values map[uint64]*tagValueBucket
	stats  TagStats
}

func newTagKeyIndex() *tagKeyIndex {
	return &tagKeyIndex{values: make(map[uint64]*tagValueBucket)}
}

func (t *tagKeyIndex) add(value string, id uint64, at time.Time) {
	h := xxhash.Sum64String(value)
	b, ok := t.values[h]
	if !ok {
		b = &tagValueBucket{value: value, ids: make(map[uint64]struct{})}
		t.values[h] = b
		t.stats.UniqueValues++
	}
	b.ids[id] = struct{}{}
	t.stats.TotalEntries++
	t.stats.LastSeen = at
}

// remove decrements the bucket for value and, if it becomes empty, removes
// the bucket and decrements UniqueValues.
func (t *tagKeyIndex) remove(value string, id uint64) {
	h := xxhash.Sum64String(value)
	b, ok := t.values[h]
	if !ok {
		return
	}
	delete(b.ids, id)
	if t.stats.TotalEntries > 0 {
		t.stats.TotalEntries--
	}
	if len(b.ids) == 0 {
		delete(t.values, h)
		t.stats.UniqueValues--
	}
}

func (t *tagKeyIndex) idsForValue(value string) map[uint64]struct{} {
	b, ok := t.values[xxhash.Sum64String(value)]
	if !ok {
		return nil
	}
	return b.ids
}

// indexes bundles every secondary dimension maintained over the ring's
// occupied slots.
type indexes struct {
	bySession     map[string]map[uint64]struct{}
	byLevel       map[Level]map[uint64]struct{}
	byCorrelation map[string]map[uint64]struct{}
	byTagKey      map[string]*tagKeyIndex
}

func newIndexes() *indexes {
	return &indexes{
		bySession:     make(map[string]map[uint64]struct{}),
		byLevel:       make(map[Level]map[uint64]struct{}),
		byCorrelation: make(map[string]map[uint64]struct{}),
		byTagKey:      make(map[string]*tagKeyIndex),
	}
}

func (ix *indexes) insert(e *Entry) {
	addTo(ix.bySession, e.SessionName, e.ID)
	addTo(ix.byLevel, e.Level, e.ID)
	if cid, ok := e.CorrelationID(); ok && cid != "" {
		addTo(ix.byCorrelation, cid, e.ID)
	}
	for k, v := range e.Ctx {
		tk, ok := ix.byTagKey[k]
		if !ok {
			tk = newTagKeyIndex()
			ix.byTagKey[k] = tk
		}
		tk.add(v, e.ID, e.ReceivedAt)
	}
}

func (ix *indexes) remove(e *Entry) {
	removeFrom(ix.bySession, e.SessionName, e.ID)
	removeFrom(ix.byLevel, e.Level, e.ID)
	if cid, ok := e.CorrelationID(); ok && cid != "" {
		removeFrom(ix.byCorrelation, cid, e.ID)
	}
	for k, v := range e.Ctx {
		if tk, ok := ix.byTagKey[k]; ok {
			tk.remove(v, e.ID)
			if len(tk.values) == 0 {
				delete(ix.byTagKey, k)
			}
		}
	}
}

func (ix *indexes) clear() {
	ix.bySession = make(map[string]map[uint64]struct{})
	ix.byLevel = make(map[Level]map[uint64]struct{})
	ix.byCorrelation = make(map[string]map[uint64]struct{})
	ix.byTagKey = make(map[string]*tagKeyIndex)
}

func addTo[K comparable](m map[K]map[uint64]struct{}, key K, id uint64) {
	s, ok := m[key]
	if !ok {
		s = make(map[uint64]struct{})
		m[key] = s
	}
	s[id] = struct{}{}
}

func removeFrom[K comparable](m map[K]map[uint64]struct{}, key K, id uint64) {
	s, ok := m[key]
	if !ok {
		return
	}
	delete(s, id)
	if len(s) == 0 {
		delete(m, key)
	}
}

// TagKeyStats returns the current stats for a context-tag key, or false if
// the key has never been seen (or has aged out of the ring entirely).
func (ix *indexes) TagKeyStats(key string) (TagStats, bool) {
	tk, ok := ix.byTagKey[key]
	if !ok {
		return TagStats{}, false
	}
	return tk.stats, true
}
