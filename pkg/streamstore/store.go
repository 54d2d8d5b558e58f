// Package streamstore implements the high-frequency stream channels: a
// per-channel FIFO capped at a configurable limit, with no aggregation —
// retention is strictly the N latest samples.
package streamstore

import (
	"sync"
	"time"

	"github.com/grafana/logrooms/pkg/idgen"
)

// Entry is one stream sample.
type Entry struct {
	ID         uint64
	ChannelID  string
	Data       []byte
	Timestamp  time.Time
	StreamType string
	Group      string
}

type channel struct {
	entries []Entry
}

// Store is the per-room stream store.
type Store struct {
	mu       sync.RWMutex
	capacity int
	channels map[string]*channel
}

// New creates a Store capping each channel at capacity entries (default
// 1000).
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Store{capacity: capacity, channels: make(map[string]*channel)}
}

// Add pushes data onto channelID's FIFO, evicting the oldest sample if the
// channel is at capacity. It returns whether this was the channel's first
// ever sample, which the dispatcher uses to trigger auto-subscription.
func (s *Store) Add(channelID string, data []byte, ts time.Time, streamType, group string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, existed := s.channels[channelID]
	firstSample := !existed
	if !existed {
		c = &channel{}
		s.channels[channelID] = c
	}

	e := Entry{
		ID:         idgen.NextStreamID(),
		ChannelID:  channelID,
		Data:       data,
		Timestamp:  ts,
		StreamType: streamType,
		Group:      group,
	}
	c.entries = append(c.entries, e)
	if len(c.entries) > s.capacity {
		c.entries = c.entries[len(c.entries)-s.capacity:]
	}
	return e, firstSample
}

// HasChannel reports whether channelID has ever received a sample.
func (s *Store) HasChannel(channelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[channelID]
	return ok
}

// Channels returns the names of every known channel.
func (s *Store) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.channels))
	for name := range s.channels {
		out = append(out, name)
	}
	return out
}

// Latest returns up to n of the most recent entries for channelID.
func (s *Store) Latest(channelID string, n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	if n <= 0 || n > len(c.entries) {
		n = len(c.entries)
	}
	out := make([]Entry, n)
	copy(out, c.entries[len(c.entries)-n:])
	return out
}

// Clear removes every channel. This replaces the channel map outright
// rather than iterating and deleting by key.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[string]*channel)
}
