package entrystore

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/grafana/logrooms/pkg/idgen"
)

// Ring is a fixed-capacity circular buffer of Entry slots plus secondary
// indexes by session, level, and context tag. Each method is atomic under
// the ring's own mutex; readers observe an entry either fully indexed or
// not present at all, never a hybrid.
type Ring struct {
	mu sync.RWMutex

	capacity int
	slots    []*Entry // nil entries are unoccupied
	next     int      // index the next push writes to
	size     int

	idIndex map[uint64]int // entry id -> slot index, O(1) getById
	ix      *indexes

	regexCache *lru.Cache[string, *regexp.Regexp]
}

// New creates a ring of the given capacity. capacity must be positive.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	cache, _ := lru.New[string, *regexp.Regexp](256)
	return &Ring{
		capacity:   capacity,
		slots:      make([]*Entry, capacity),
		idIndex:    make(map[uint64]int),
		ix:         newIndexes(),
		regexCache: cache,
	}
}

// Push assigns the next global id to e, sets its ReceivedAt, evicts the
// oldest occupant if the ring is full, and inserts e. It returns the stored
// entry (the same pointer, now carrying ID/ReceivedAt).
func (r *Ring) Push(e *Entry) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = idgen.NextEntryID()
	e.ReceivedAt = time.Now()

	if r.size == r.capacity {
		if victim := r.slots[r.next]; victim != nil {
			r.ix.remove(victim)
			delete(r.idIndex, victim.ID)
		}
	} else {
		r.size++
	}

	r.slots[r.next] = e
	r.idIndex[e.ID] = r.next
	r.ix.insert(e)
	r.next = (r.next + 1) % r.capacity
	return e
}

// GetByID is O(1).
func (r *Ring) GetByID(id uint64) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.idIndex[id]
	if !ok {
		return nil, false
	}
	return r.slots[idx], true
}

// GetByIDs is O(k) in the number of requested ids.
func (r *Ring) GetByIDs(ids []uint64) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		if idx, ok := r.idIndex[id]; ok {
			out = append(out, r.slots[idx])
		}
	}
	return out
}

// GetSince returns, in ascending id order, every currently-occupied entry
// with id strictly greater than since.
func (r *Ring) GetSince(since uint64) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, r.size)
	for _, e := range r.slots {
		if e != nil && e.ID > since {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Size returns the number of occupied slots.
func (r *Ring) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the configured capacity.
func (r *Ring) Capacity() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capacity
}

// Sessions returns the name of every session with at least one entry
// currently in the ring.
func (r *Ring) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ix.bySession))
	for name := range r.ix.bySession {
		out = append(out, name)
	}
	return out
}

// TagKeyStats exposes the per-context-tag-key statistics.
func (r *Ring) TagKeyStats(key string) (TagStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ix.TagKeyStats(key)
}

// Clear empties the buffer and all indexes. It never rewinds the global id
// counter.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = make([]*Entry, r.capacity)
	r.idIndex = make(map[uint64]int)
	r.ix.clear()
	r.next = 0
	r.size = 0
}

// Resize preserves the newest entries (up to newCap) and rebuilds all
// indexes. An invalid newCap (<=0) is rejected with no change.
func (r *Ring) Resize(newCap int) error {
	if newCap <= 0 {
		return ErrCapacityInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.newestLocked(newCap)

	r.capacity = newCap
	r.slots = make([]*Entry, newCap)
	r.idIndex = make(map[uint64]int)
	r.ix.clear()
	r.next = 0
	r.size = 0
	for _, e := range kept {
		r.slots[r.next] = e
		r.idIndex[e.ID] = r.next
		r.ix.insert(e)
		r.next = (r.next + 1) % r.capacity
		r.size++
	}
	return nil
}

func (r *Ring) newestLocked(n int) []*Entry {
	all := make([]*Entry, 0, r.size)
	for _, e := range r.slots {
		if e != nil {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// QueryResult is the paginated result of Query.
type QueryResult struct {
	Entries []*Entry
	Total   int
}

// Query filters occupied entries by Filter, then applies offset/limit over
// the matches (ordered by id). A malformed regex in TitlePattern or
// MessagePattern is silently dropped rather than failing the query.
func (r *Ring) Query(f Filter, offset, limit int) QueryResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidateIDs := r.candidateIDsLocked(f)

	matches := make([]*Entry, 0, len(candidateIDs))
	for id := range candidateIDs {
		idx, ok := r.idIndex[id]
		if !ok {
			continue
		}
		e := r.slots[idx]
		if r.matchesLocked(e, f) {
			matches = append(matches, e)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	total := len(matches)
	if offset > len(matches) {
		offset = len(matches)
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return QueryResult{Entries: matches, Total: total}
}

// candidateIDsLocked narrows by the cheap set-membership predicates
// (session, level, correlation, context tag) before the more expensive
// per-entry checks (time range, regex) run. If no set predicate is present
// it falls back to scanning every occupied slot.
func (r *Ring) candidateIDsLocked(f Filter) map[uint64]struct{} {
	var sets []map[uint64]struct{}

	if len(f.Sessions) > 0 {
		union := make(map[uint64]struct{})
		for s := range f.Sessions {
			for id := range r.ix.bySession[s] {
				union[id] = struct{}{}
			}
		}
		sets = append(sets, union)
	}
	if len(f.Levels) > 0 {
		union := make(map[uint64]struct{})
		for lvl := range f.Levels {
			for id := range r.ix.byLevel[lvl] {
				union[id] = struct{}{}
			}
		}
		sets = append(sets, union)
	}
	if f.CorrelationID != "" {
		sets = append(sets, r.ix.byCorrelation[f.CorrelationID])
	}
	if f.ContextTag != "" {
		if k, v, ok := strings.Cut(f.ContextTag, "="); ok {
			if tk, found := r.ix.byTagKey[k]; found {
				sets = append(sets, tk.idsForValue(v))
			} else {
				sets = append(sets, nil)
			}
		}
	}

	if len(sets) == 0 {
		all := make(map[uint64]struct{}, r.size)
		for id := range r.idIndex {
			all[id] = struct{}{}
		}
		return all
	}

	intersection := sets[0]
	for _, s := range sets[1:] {
		next := make(map[uint64]struct{})
		for id := range intersection {
			if _, ok := s[id]; ok {
				next[id] = struct{}{}
			}
		}
		intersection = next
	}
	return intersection
}

func (r *Ring) matchesLocked(e *Entry, f Filter) bool {
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	if f.ContextTag != "" {
		k, v, ok := strings.Cut(f.ContextTag, "=")
		if !ok || e.Ctx[k] != v {
			return false
		}
	}

	matched := true
	if f.TitlePattern != "" {
		re := r.compileLocked(f.TitlePattern)
		matched = re == nil || re.MatchString(e.Title)
	}
	if matched && f.MessagePattern != "" {
		re := r.compileLocked(f.MessagePattern)
		if re != nil {
			matched = re.MatchString(string(e.Binary))
		}
	}
	if f.InverseMatch {
		return !matched
	}
	return matched
}

// compileLocked compiles (case-insensitively) and caches pattern, returning
// nil if it fails to compile — the predicate is then treated as "always
// true" by the caller, i.e. dropped.
func (r *Ring) compileLocked(pattern string) *regexp.Regexp {
	if re, ok := r.regexCache.Get(pattern); ok {
		return re
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil
	}
	r.regexCache.Add(pattern, re)
	return re
}
