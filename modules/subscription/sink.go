package subscription

import (
	"github.com/grafana/logrooms/pkg/entrystore"
	"github.com/grafana/logrooms/pkg/ingestproto"
)

// EntryReady implements dispatcher.Sink: enqueue for the per-room entry
// batch throttler. The dispatcher has already counted the entry as
// received; broadcast is counted when the batch actually flushes.
func (m *Manager) EntryReady(roomID string, entryID uint64) {
	m.entryThrottle.Add(roomID, entryID)
}

// WatchReady implements dispatcher.Sink: enqueue for the per-(room,name)
// watch throttler.
func (m *Manager) WatchReady(roomID, watchName string) {
	m.watchThrottle.Add(roomID, watchName)
}

// StreamReady implements dispatcher.Sink: immediate broadcast, with
// auto-subscription of every current room member on a channel's first
// sample: the dispatcher notifies the subscription manager to
// auto-subscribe all current room members.
func (m *Manager) StreamReady(roomID, channel string, firstSample bool) {
	r, ok := m.rooms.Get(roomID)
	if !ok {
		return
	}
	latest := r.Stream.Latest(channel, 1)
	if len(latest) == 0 {
		return
	}
	entry := latest[len(latest)-1]

	for _, sub := range m.subsInRoom(roomID) {
		if firstSample && !sub.hasStreamSub(channel) {
			sub.addStreamSub(channel)
		}
		if !sub.hasStreamSub(channel) || sub.streamPausedFor(channel) {
			continue
		}
		m.send(sub, streamMsg{Type: KindStream, RoomID: roomID, Entry: entry})
	}
}

// ControlApplied implements dispatcher.Sink: broadcast a `clear` event,
// bypassing throttling entirely.
func (m *Manager) ControlApplied(roomID string, kind ingestproto.ControlKind) {
	msg := clearMsg{Type: KindClear, RoomID: roomID, Kind: controlKindName(kind)}
	for _, sub := range m.subsInRoom(roomID) {
		m.send(sub, msg)
	}
}

func controlKindName(kind ingestproto.ControlKind) string {
	switch kind {
	case ingestproto.ControlClearLog:
		return "clearLog"
	case ingestproto.ControlClearWatches:
		return "clearWatches"
	case ingestproto.ControlClearProcessFlow:
		return "clearProcessFlow"
	default:
		return "clearAll"
	}
}

// TraceUpdated implements dispatcher.Sink: broadcast the trace's current
// summary whenever the aggregator updates it.
func (m *Manager) TraceUpdated(roomID, traceID string) {
	r, ok := m.rooms.Get(roomID)
	if !ok {
		return
	}
	tr, ok := r.Traces.GetTrace(traceID)
	if !ok {
		return
	}
	msg := traceMsg{Type: KindTrace, RoomID: roomID, Summary: tr.Summary()}
	for _, sub := range m.subsInRoom(roomID) {
		m.send(sub, msg)
	}
}

// ProducerMoved implements dispatcher.Sink: notify subscribers of both the
// old and new room that a producer moved.
func (m *Manager) ProducerMoved(producerID, oldRoomID, newRoomID string) {
	evt := func(roomID string) connectionEventMsg {
		return connectionEventMsg{Type: KindConnectionEvent, ProducerID: producerID, OldRoomID: oldRoomID, NewRoomID: newRoomID}
	}
	for _, sub := range m.subsInRoom(oldRoomID) {
		m.send(sub, evt(oldRoomID))
	}
	for _, sub := range m.subsInRoom(newRoomID) {
		m.send(sub, evt(newRoomID))
	}
}

// RoomCreated broadcasts a roomCreated event to every subscriber,
// regardless of room membership, so viewers can refresh their room lists.
func (m *Manager) RoomCreated(roomID string) {
	m.mu.RLock()
	subs := make([]*Subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.RUnlock()

	msg := roomCreatedMsg{Type: KindRoomCreated, RoomID: roomID}
	for _, sub := range subs {
		m.send(sub, msg)
	}
}

// ProducerConnected implements dispatcher.Sink.
func (m *Manager) ProducerConnected(producerID, roomID, appName, remoteAddr string) {
	msg := clientConnectMsg{Type: KindClientConnect, RoomID: roomID, ProducerID: producerID, AppName: appName, RemoteAddr: remoteAddr}
	for _, sub := range m.subsInRoom(roomID) {
		m.send(sub, msg)
	}
}

// ProducerDisconnected implements dispatcher.Sink.
func (m *Manager) ProducerDisconnected(producerID, roomID string) {
	msg := clientDisconnectMsg{Type: KindClientDisconnect, RoomID: roomID, ProducerID: producerID}
	for _, sub := range m.subsInRoom(roomID) {
		m.send(sub, msg)
	}
}

// broadcastEntries is the entryThrottler's flush callback: fetch the
// flushed ids, then deliver each subscriber the subset
// its filter admits, advancing lastDeliveredEntryId to the batch max
// regardless of how much of the batch matched.
func (m *Manager) broadcastEntries(roomID string, ids []uint64) {
	r, ok := m.rooms.Get(roomID)
	if !ok {
		return
	}
	entries := r.Ring.GetByIDs(ids)
	if len(entries) == 0 {
		return
	}
	var maxID uint64
	for _, e := range entries {
		if e.ID > maxID {
			maxID = e.ID
		}
	}

	for _, sub := range m.subsInRoom(roomID) {
		if sub.Paused() {
			continue
		}
		matched := make([]*entrystore.Entry, 0, len(entries))
		for _, e := range entries {
			if sub.matches(e) {
				matched = append(matched, e)
			}
		}
		sub.setLastDelivered(maxID)
		if len(matched) > 0 {
			if m.metrics != nil {
				for range matched {
					m.metrics.IncEntriesBroadcast()
				}
			}
			m.send(sub, entriesMsg{Type: KindEntries, RoomID: roomID, Entries: matched})
		}
	}
}

// broadcastWatch is the watchThrottler's flush callback: only the most
// recent sample for the name is delivered.
func (m *Manager) broadcastWatch(roomID, name string) {
	r, ok := m.rooms.Get(roomID)
	if !ok {
		return
	}
	sample, ok := r.Watch.Current(name)
	if !ok {
		return
	}
	msg := watchMsg{Type: KindWatch, RoomID: roomID, Sample: sample}
	for _, sub := range m.subsInRoom(roomID) {
		if m.metrics != nil {
			m.metrics.IncWatchesBroadcast()
		}
		m.send(sub, msg)
	}
}

type connectionEventMsg struct {
	Type       string `json:"type"`
	ProducerID string `json:"producerId"`
	OldRoomID  string `json:"oldRoomId"`
	NewRoomID  string `json:"newRoomId"`
}
