package watchstore

import (
	"sync"
	"time"
)

type watchState struct {
	current    Sample
	hasCurrent bool

	raw        *ringTier
	agg        *aggregator
	counterMap map[string]int // occurrence counts for non-numeric values
}

func newWatchState() *watchState {
	return &watchState{
		raw:        newRingTier(RawCapacity),
		agg:        newAggregator(),
		counterMap: make(map[string]int),
	}
}

// Store is the per-room watch store.
type Store struct {
	mu      sync.RWMutex
	watches map[string]*watchState
}

// New creates an empty Store.
func New() *Store {
	return &Store{watches: make(map[string]*watchState)}
}

// Set records s as the named watch's latest sample (last-writer-wins by
// producer timestamp), appends it to the raw tier, and feeds the rollup
// aggregator. Non-numeric values are counted per distinct string and the
// counter map feeds raw as (count, timestamp, label) so they can still be
// plotted.
func (s *Store) Set(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watches[sample.Name]
	if !ok {
		w = newWatchState()
		s.watches[sample.Name] = w
	}

	if !w.hasCurrent || !sample.Timestamp.Before(w.current.Timestamp) {
		w.current = sample
		w.hasCurrent = true
	}

	v := sample.Value
	if !sample.Numeric {
		w.counterMap[sample.Raw]++
		v = float64(w.counterMap[sample.Raw])
	}

	w.raw.push(Bucket{BucketStart: sample.Timestamp, Avg: v, Min: v, Max: v, Count: 1})
	w.agg.feed(v, sample.Timestamp)
}

// Current returns the latest sample recorded for name.
func (s *Store) Current(name string) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.watches[name]
	if !ok || !w.hasCurrent {
		return Sample{}, false
	}
	return w.current, true
}

// AllCurrent returns the latest sample for every known watch, used to build
// the subscriber `init` frame.
func (s *Store) AllCurrent() map[string]Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Sample, len(s.watches))
	for name, w := range s.watches {
		if w.hasCurrent {
			out[name] = w.current
		}
	}
	return out
}

// GetHistory returns the points for name within [from, to] at the chosen
// resolution. ResolutionAuto applies the auto-rule: range < 30s -> raw,
// < 1h -> 1s, < 24h -> 1m, else 1h.
func (s *Store) GetHistory(name string, from, to time.Time, res Resolution) []Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.watches[name]
	if !ok {
		return nil
	}

	if res == ResolutionAuto {
		res = autoResolution(from, to)
	}

	switch res {
	case ResolutionRaw:
		return w.raw.inRange(from, to)
	case ResolutionSecond:
		return w.agg.secTier.inRange(from, to)
	case ResolutionMinute:
		return w.agg.minTier.inRange(from, to)
	case ResolutionHour:
		return w.agg.hourTier.inRange(from, to)
	default:
		return w.agg.hourTier.inRange(from, to)
	}
}

func autoResolution(from, to time.Time) Resolution {
	if from.IsZero() || to.IsZero() {
		return ResolutionHour
	}
	d := to.Sub(from)
	switch {
	case d < 30*time.Second:
		return ResolutionRaw
	case d < time.Hour:
		return ResolutionSecond
	case d < 24*time.Hour:
		return ResolutionMinute
	default:
		return ResolutionHour
	}
}

// ClearHistory empties the tiers and resets the aggregator for name (or
// every watch if name is empty), without touching current values.
func (s *Store) ClearHistory(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		for _, w := range s.watches {
			w.raw.clear()
			w.agg.reset()
			w.counterMap = make(map[string]int)
		}
		return
	}
	if w, ok := s.watches[name]; ok {
		w.raw.clear()
		w.agg.reset()
		w.counterMap = make(map[string]int)
	}
}

// Clear resets the entire store, including current values.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watches = make(map[string]*watchState)
}

// Names returns every known watch name.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.watches))
	for name := range s.watches {
		out = append(out, name)
	}
	return out
}
