package subscription

import (
	"flag"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/grafana/logrooms/modules/room"
	"github.com/grafana/logrooms/pkg/entrystore"
	"github.com/grafana/logrooms/pkg/metrics"
	"github.com/grafana/logrooms/pkg/util/log"
)

// Config configures the two throttlers; zero values take their package
// defaults.
type Config struct {
	EntryThrottle time.Duration `yaml:"entry_throttle"`
	WatchThrottle time.Duration `yaml:"watch_throttle"`
	AuthToken     string        `yaml:"auth_token"`
	AuthRequired  bool          `yaml:"auth_required"`
}

// RegisterFlagsAndApplyDefaults wires Config's flags under prefix, matching
// tempo's per-module config convention: 333ms entry batching, 100ms
// watch coalescing.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&c.EntryThrottle, prefix+".entry-throttle", 333*time.Millisecond, "Coalescing window for per-room entry batches.")
	f.DurationVar(&c.WatchThrottle, prefix+".watch-throttle", 100*time.Millisecond, "Coalescing window for per-(room,watch) broadcasts.")
	f.StringVar(&c.AuthToken, prefix+".auth-token", "", "Bearer token subscribers must present when auth is required.")
	f.BoolVar(&c.AuthRequired, prefix+".auth-required", false, "Require subscribers to authenticate with auth-token.")
}

// Manager is the subscriber registry and fan-out engine. It implements
// dispatcher.Sink so the dispatcher can notify it directly.
type Manager struct {
	rooms   *room.Manager
	metrics *metrics.Counters
	cfg     Config

	mu     sync.RWMutex
	subs   map[string]*Subscriber
	byRoom map[string]map[string]struct{}

	entryThrottle *entryThrottler
	watchThrottle *watchThrottler
}

// NewManager creates a Manager wired to rooms for store access.
func NewManager(rooms *room.Manager, m *metrics.Counters, cfg Config) *Manager {
	mgr := &Manager{
		rooms:   rooms,
		metrics: m,
		cfg:     cfg,
		subs:    make(map[string]*Subscriber),
		byRoom:  make(map[string]map[string]struct{}),
	}
	mgr.entryThrottle = newEntryThrottler(cfg.EntryThrottle, mgr.broadcastEntries)
	mgr.watchThrottle = newWatchThrottler(cfg.WatchThrottle, mgr.broadcastWatch)
	return mgr
}

// Join registers a new subscriber on conn, bound to roomID (default room if
// empty), and sends the initial `init` frame.
func (m *Manager) Join(conn Conn, roomID string) *Subscriber {
	if roomID == "" {
		roomID = room.DefaultRoomID
	}
	sub := newSubscriber(uuid.New().String(), conn, roomID)

	m.mu.Lock()
	m.subs[sub.ID] = sub
	m.addToRoomLocked(roomID, sub.ID)
	m.mu.Unlock()

	r := m.rooms.GetOrCreate(roomID)
	r.AddSubscriber(sub.ID)

	_ = conn.WriteJSON(m.initMsgFor(r))
	return sub
}

// Leave removes a subscriber from every membership set; there is no
// retry on departure.
func (m *Manager) Leave(sub *Subscriber) {
	m.mu.Lock()
	roomID := sub.RoomID()
	delete(m.subs, sub.ID)
	if set, ok := m.byRoom[roomID]; ok {
		delete(set, sub.ID)
	}
	m.mu.Unlock()

	if r, ok := m.rooms.Get(roomID); ok {
		r.RemoveSubscriber(sub.ID)
	}
}

func (m *Manager) addToRoomLocked(roomID, subID string) {
	set, ok := m.byRoom[roomID]
	if !ok {
		set = make(map[string]struct{})
		m.byRoom[roomID] = set
	}
	set[subID] = struct{}{}
}

func (m *Manager) subsInRoom(roomID string) []*Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byRoom[roomID]
	out := make([]*Subscriber, 0, len(ids))
	for id := range ids {
		if s, ok := m.subs[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) initMsgFor(r *room.Room) initMsg {
	return initMsg{
		Type:          KindInit,
		RoomID:        r.ID,
		EntryCount:    r.Ring.Size(),
		Capacity:      r.Ring.Capacity(),
		Watches:       r.Watch.AllCurrent(),
		Sessions:      r.Ring.Sessions(),
		Rooms:         m.rooms.GetRoomsInfo(),
		ProducerCount: r.Info().ProducerCount,
	}
}

// send delivers a message to sub. On any write failure it logs a warning and
// removes sub from every membership set; no event about the removal is sent
// to other subscribers.
func (m *Manager) send(sub *Subscriber, msg interface{}) {
	if err := sub.conn.WriteJSON(msg); err != nil {
		level.Warn(log.Logger).Log("msg", "subscriber send failed, removing", "subscriber", sub.ID, "err", err)
		m.Leave(sub)
	}
}

// HandleCommand processes one decoded client command in arrival order.
func (m *Manager) HandleCommand(sub *Subscriber, cmd command) {
	switch cmd.Type {
	case CmdSubscribe:
		sub.setFilter(toFilter(cmd.Filters))

	case CmdPause:
		sub.pause()

	case CmdResume:
		sinceID := sub.resume()
		m.deliverCatchUp(sub, sinceID)

	case CmdGetSince:
		m.deliverCatchUp(sub, cmd.SinceID)

	case CmdSwitchRoom:
		m.switchRoom(sub, cmd.Room)

	case CmdGetRooms:
		m.send(sub, roomsMsg{Type: KindRooms, Rooms: m.rooms.GetRoomsInfo()})

	case CmdSubscribeStream:
		sub.addStreamSub(cmd.Channel)
		m.send(sub, streamChannelMsg{Type: KindStreamSubscribed, Channel: cmd.Channel})

	case CmdUnsubscribeStream:
		sub.removeStreamSub(cmd.Channel)
		m.send(sub, streamChannelMsg{Type: KindStreamUnsubscribed, Channel: cmd.Channel})

	case CmdPauseStream:
		sub.pauseStream(cmd.Channel)
		m.send(sub, streamChannelMsg{Type: KindStreamPaused, Channel: cmd.Channel})

	case CmdResumeStream:
		sub.resumeStream(cmd.Channel)
		m.send(sub, streamChannelMsg{Type: KindStreamResumed, Channel: cmd.Channel})

	case CmdGetStreamSubscriptions:
		m.send(sub, streamSubscriptionsMsg{Type: KindStreamSubscriptions, Channels: sub.streamChannels()})

	default:
		m.send(sub, errorMsg{Type: KindError, Message: fmt.Sprintf("unknown command %q", cmd.Type)})
	}
}

// deliverCatchUp sends every entry in sub's room with id > sinceID,
// bounded by what the ring still retains, matching sub's filter.
func (m *Manager) deliverCatchUp(sub *Subscriber, sinceID uint64) {
	r, ok := m.rooms.Get(sub.RoomID())
	if !ok {
		return
	}
	all := r.Ring.GetSince(sinceID)
	matched := make([]*entrystore.Entry, 0, len(all))
	var maxID uint64
	for _, e := range all {
		if e.ID > maxID {
			maxID = e.ID
		}
		if sub.matches(e) {
			matched = append(matched, e)
		}
	}
	if maxID > 0 {
		sub.setLastDelivered(maxID)
	}
	if len(matched) > 0 {
		m.send(sub, entriesMsg{Type: KindEntries, RoomID: sub.RoomID(), Entries: matched})
	}
}

func (m *Manager) switchRoom(sub *Subscriber, newRoomID string) {
	if newRoomID == "" {
		newRoomID = room.DefaultRoomID
	}
	oldRoomID := sub.RoomID()
	if oldRoomID == newRoomID {
		return
	}

	if old, ok := m.rooms.Get(oldRoomID); ok {
		old.RemoveSubscriber(sub.ID)
	}
	m.mu.Lock()
	if set, ok := m.byRoom[oldRoomID]; ok {
		delete(set, sub.ID)
	}
	m.addToRoomLocked(newRoomID, sub.ID)
	m.mu.Unlock()

	sub.setRoomID(newRoomID)
	newRoom := m.rooms.GetOrCreate(newRoomID)
	newRoom.AddSubscriber(sub.ID)

	for _, channel := range newRoom.Stream.Channels() {
		sub.addStreamSub(channel)
	}

	m.send(sub, roomSwitchedMsg{Type: KindRoomSwitched, Init: m.initMsgFor(newRoom)})
}

func toFilter(cf *commandFilters) entrystore.Filter {
	if cf == nil {
		return entrystore.Filter{}
	}
	f := entrystore.Filter{
		TitlePattern:   cf.TitlePattern,
		MessagePattern: cf.MessagePattern,
		InverseMatch:   cf.InverseMatch,
	}
	if len(cf.Sessions) > 0 {
		f.Sessions = make(map[string]struct{}, len(cf.Sessions))
		for _, s := range cf.Sessions {
			f.Sessions[s] = struct{}{}
		}
	}
	if len(cf.Levels) > 0 {
		f.Levels = make(map[entrystore.Level]struct{}, len(cf.Levels))
		for _, l := range cf.Levels {
			f.Levels[entrystore.Level(l)] = struct{}{}
		}
	}
	if cf.From != nil {
		f.From = *cf.From
	}
	if cf.To != nil {
		f.To = *cf.To
	}
	return f
}
