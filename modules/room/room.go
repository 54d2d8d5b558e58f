// Package room implements the per-namespace state container holding one
// log ring, watch store, stream store, method tracker, and trace
// aggregator per room, plus the lazy-creation registry that keys them by
// id.
package room

import (
	"flag"
	"sync"
	"time"

	"github.com/grafana/logrooms/pkg/entrystore"
	"github.com/grafana/logrooms/pkg/methodtracker"
	"github.com/grafana/logrooms/pkg/streamstore"
	"github.com/grafana/logrooms/pkg/traceagg"
	"github.com/grafana/logrooms/pkg/watchstore"
)

// DefaultRoomID is the indelible room created at startup and whenever a
// producer or subscriber references it before it otherwise exists.
const DefaultRoomID = "default"

// Config bounds every store a Room creates. Zero fields take each store's
// own default.
type Config struct {
	RingCapacity   int           `yaml:"ring_capacity"`
	StreamCapacity int           `yaml:"stream_capacity"`
	TraceTimeout   time.Duration `yaml:"trace_timeout"`
	CompletedCap   int           `yaml:"completed_trace_capacity"`
}

// RegisterFlagsAndApplyDefaults wires Config's flags under prefix, matching
// tempo's per-module config convention. Ring capacity is bounded
// 1,000-1,000,000 entries per room; stream capacity 100-100,000 samples
// per channel.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&c.RingCapacity, prefix+".ring-capacity", 10000, "Maximum log entries retained per room (1000-1000000).")
	f.IntVar(&c.StreamCapacity, prefix+".stream-capacity", 1000, "Maximum stream samples retained per channel (100-100000).")
	f.DurationVar(&c.TraceTimeout, prefix+".trace-timeout", 5*time.Minute, "Idle time before an active trace ages into the completed ring.")
	f.IntVar(&c.CompletedCap, prefix+".completed-trace-capacity", 1000, "Maximum completed traces retained per room.")
}

// Validate reports whether Config's bounds are within the supported
// ranges, for app.Config.CheckConfig to surface as a warning rather than a
// silent misconfiguration.
func (c Config) Validate() error {
	if c.RingCapacity < 1000 || c.RingCapacity > 1000000 {
		return ErrCapacityInvalid
	}
	if c.StreamCapacity < 100 || c.StreamCapacity > 100000 {
		return ErrCapacityInvalid
	}
	return nil
}

// Room owns one instance of each store (log ring, watch, stream, method
// tracker, trace aggregator) plus its subscriber/producer membership sets.
// Each store serializes its own mutations under its own lock; a single
// producer's packets are applied in arrival order because each connection
// has exactly one read goroutine.
type Room struct {
	ID string

	Ring    *entrystore.Ring
	Watch   *watchstore.Store
	Stream  *streamstore.Store
	Tracker *methodtracker.Tracker
	Traces  *traceagg.Aggregator

	createdAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	subscribers  map[string]struct{}
	producers    map[string]struct{}
}

func newRoom(id string, cfg Config, now time.Time) *Room {
	return &Room{
		ID:           id,
		Ring:         entrystore.New(cfg.RingCapacity),
		Watch:        watchstore.New(),
		Stream:       streamstore.New(cfg.StreamCapacity),
		Tracker:      methodtracker.New(),
		Traces:       traceagg.New(cfg.TraceTimeout, cfg.CompletedCap),
		createdAt:    now,
		lastActivity: now,
		subscribers:  make(map[string]struct{}),
		producers:    make(map[string]struct{}),
	}
}

// Touch records producer activity; called on every inbound packet.
func (r *Room) Touch(now time.Time) {
	r.mu.Lock()
	r.lastActivity = now
	r.mu.Unlock()
}

// LastActivity returns the timestamp of the most recent producer packet.
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// CreatedAt returns the room's creation time, fixed for its lifetime.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// AddSubscriber records subscriber id as a member of this room.
func (r *Room) AddSubscriber(id string) {
	r.mu.Lock()
	r.subscribers[id] = struct{}{}
	r.mu.Unlock()
}

// RemoveSubscriber drops subscriber id from this room's membership set.
func (r *Room) RemoveSubscriber(id string) {
	r.mu.Lock()
	delete(r.subscribers, id)
	r.mu.Unlock()
}

// SubscriberIDs returns a snapshot of the subscriber membership set.
func (r *Room) SubscriberIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.subscribers))
	for id := range r.subscribers {
		ids = append(ids, id)
	}
	return ids
}

// SubscriberCount returns the number of subscribers currently in this room.
func (r *Room) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// AddProducer records producer id as a member of this room.
func (r *Room) AddProducer(id string) {
	r.mu.Lock()
	r.producers[id] = struct{}{}
	r.mu.Unlock()
}

// RemoveProducer drops producer id from this room's membership set.
func (r *Room) RemoveProducer(id string) {
	r.mu.Lock()
	delete(r.producers, id)
	r.mu.Unlock()
}

// ProducerCount returns the number of producers currently bound to this room.
func (r *Room) ProducerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.producers)
}

// Clear resets every store's content but keeps the room's identity,
// membership sets, and createdAt.
func (r *Room) Clear() {
	r.Ring.Clear()
	r.Watch.Clear()
	r.Stream.Clear()
	r.Tracker.Clear()
	r.Traces.Clear()
}

// Info is the snapshot exposed to subscribers' init/rooms frames and to
// roomctl.
type Info struct {
	ID              string
	EntryCount      int
	SubscriberCount int
	ProducerCount   int
	CreatedAt       time.Time
	LastActivity    time.Time
}

// Info captures a point-in-time summary of this room.
func (r *Room) Info() Info {
	r.mu.Lock()
	subs, prods, last := len(r.subscribers), len(r.producers), r.lastActivity
	r.mu.Unlock()
	return Info{
		ID:              r.ID,
		EntryCount:      r.Ring.Size(),
		SubscriberCount: subs,
		ProducerCount:   prods,
		CreatedAt:       r.createdAt,
		LastActivity:    last,
	}
}
