package subscription

import (
	"regexp"
	"sync"

	"github.com/grafana/logrooms/pkg/entrystore"
)

// Subscriber is the per-connection state: one struct per subscribed
// viewer, holding its room membership, filter, pause state, and stream
// subscriptions.
type Subscriber struct {
	ID   string
	conn Conn

	mu                   sync.Mutex
	roomID               string
	filter               entrystore.Filter
	paused               bool
	pausedCount          int
	lastDeliveredEntryID uint64
	streamSubs           map[string]struct{}
	streamPaused         map[string]struct{}
}

func newSubscriber(id string, conn Conn, roomID string) *Subscriber {
	return &Subscriber{
		ID:           id,
		conn:         conn,
		roomID:       roomID,
		streamSubs:   make(map[string]struct{}),
		streamPaused: make(map[string]struct{}),
	}
}

func (s *Subscriber) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Subscriber) setRoomID(id string) {
	s.mu.Lock()
	s.roomID = id
	s.mu.Unlock()
}

func (s *Subscriber) setFilter(f entrystore.Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

func (s *Subscriber) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Subscriber) pause() {
	s.mu.Lock()
	s.paused = true
	s.pausedCount++
	s.mu.Unlock()
}

// resume clears the paused flag and returns the entry id to resume
// delivery from.
func (s *Subscriber) resume() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return s.lastDeliveredEntryID
}

func (s *Subscriber) lastDelivered() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDeliveredEntryID
}

func (s *Subscriber) setLastDelivered(id uint64) {
	s.mu.Lock()
	if id > s.lastDeliveredEntryID {
		s.lastDeliveredEntryID = id
	}
	s.mu.Unlock()
}

// matches reports whether entry e passes this subscriber's current
// filter, evaluated against the decoded entry.
func (s *Subscriber) matches(e *entrystore.Entry) bool {
	s.mu.Lock()
	f := s.filter
	s.mu.Unlock()
	return matchesFilter(e, f)
}

// matchesFilter mirrors entrystore.Ring's query-time predicate (same
// session/level/time hard filters, same invertible title/message pattern
// match) so live delivery and historical query agree on what "matches"
// means for a given filter.
func matchesFilter(e *entrystore.Entry, f entrystore.Filter) bool {
	if len(f.Sessions) > 0 {
		if _, ok := f.Sessions[e.SessionName]; !ok {
			return false
		}
	}
	if len(f.Levels) > 0 {
		if _, ok := f.Levels[e.Level]; !ok {
			return false
		}
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}

	matched := true
	if f.TitlePattern != "" {
		if re, err := regexp.Compile("(?i)" + f.TitlePattern); err == nil {
			matched = re.MatchString(e.Title)
		}
	}
	if matched && f.MessagePattern != "" {
		if re, err := regexp.Compile("(?i)" + f.MessagePattern); err == nil {
			matched = re.MatchString(string(e.Binary))
		}
	}
	if f.InverseMatch {
		return !matched
	}
	return matched
}

func (s *Subscriber) addStreamSub(channel string) {
	s.mu.Lock()
	s.streamSubs[channel] = struct{}{}
	delete(s.streamPaused, channel)
	s.mu.Unlock()
}

func (s *Subscriber) removeStreamSub(channel string) {
	s.mu.Lock()
	delete(s.streamSubs, channel)
	delete(s.streamPaused, channel)
	s.mu.Unlock()
}

func (s *Subscriber) hasStreamSub(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streamSubs[channel]
	return ok
}

func (s *Subscriber) pauseStream(channel string) {
	s.mu.Lock()
	s.streamPaused[channel] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) resumeStream(channel string) {
	s.mu.Lock()
	delete(s.streamPaused, channel)
	s.mu.Unlock()
}

func (s *Subscriber) streamPausedFor(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streamPaused[channel]
	return ok
}

func (s *Subscriber) streamChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.streamSubs))
	for c := range s.streamSubs {
		out = append(out, c)
	}
	return out
}
