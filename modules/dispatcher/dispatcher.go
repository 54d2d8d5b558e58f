// Package dispatcher routes decoded ingest packets to the addressed
// room's stores and on to the fan-out layer.
package dispatcher

import (
	"time"

	"github.com/grafana/logrooms/modules/room"
	"github.com/grafana/logrooms/pkg/ingestproto"
	"github.com/grafana/logrooms/pkg/metrics"
)

// Sink receives notifications after a packet has been applied to a room's
// stores, for the subscription manager's throttlers to enqueue.
// Implementations must not block.
type Sink interface {
	EntryReady(roomID string, entryID uint64)
	WatchReady(roomID, watchName string)
	StreamReady(roomID, channel string, firstSample bool)
	ControlApplied(roomID string, kind ingestproto.ControlKind)
	TraceUpdated(roomID, traceID string)
	ProducerMoved(producerID, oldRoomID, newRoomID string)
	ProducerConnected(producerID, roomID, appName, remoteAddr string)
	ProducerDisconnected(producerID, roomID string)
}

// Dispatcher routes packets from producer sessions into room state.
type Dispatcher struct {
	rooms   *room.Manager
	metrics *metrics.Counters
	sink    Sink
}

// New creates a Dispatcher wired to rooms and sink. m may be nil to skip
// counting (e.g. in tests).
func New(rooms *room.Manager, m *metrics.Counters, sink Sink) *Dispatcher {
	return &Dispatcher{rooms: rooms, metrics: m, sink: sink}
}

// Rooms returns the room manager this Dispatcher routes into, for the
// ingest session to register producer membership before the first packet.
func (d *Dispatcher) Rooms() *room.Manager { return d.rooms }

// Sink returns the fan-out notification target, for the ingest session to
// emit connect/disconnect events that do not flow through Dispatch.
func (d *Dispatcher) Sink() Sink { return d.sink }

// Dispatch applies one decoded packet from a producer currently bound to
// roomID, with cached application name appName. It returns the room id the
// producer should now be considered bound to (unchanged unless pkt is a
// room-change control command).
func (d *Dispatcher) Dispatch(producerID, roomID, appName string, pkt ingestproto.Packet, now time.Time) string {
	switch pkt.Type {
	case ingestproto.TypeLogHeader:
		// Caller updates its cached appName; no room-state change.
		return roomID

	case ingestproto.TypeLogEntry:
		r := d.rooms.GetOrCreate(roomID)
		r.Touch(now)
		e := entryFromLogEntry(pkt.LogEntry, appName)
		if e.Kind.IsProcessFlow() {
			r.Ring.Push(e)
			r.Tracker.Process(e)
		} else {
			r.Ring.Push(e)
		}
		r.Traces.Process(e, now)
		if d.metrics != nil {
			d.metrics.IncEntriesReceived()
		}
		d.sink.EntryReady(roomID, e.ID)
		if traceID, ok := e.TraceID(); ok {
			d.sink.TraceUpdated(roomID, traceID)
		}
		return roomID

	case ingestproto.TypeProcessFlow:
		r := d.rooms.GetOrCreate(roomID)
		r.Touch(now)
		e := entryFromProcessFlow(pkt.ProcessFlow, appName)
		r.Ring.Push(e)
		r.Tracker.Process(e)
		r.Traces.Process(e, now)
		if d.metrics != nil {
			d.metrics.IncEntriesReceived()
		}
		d.sink.EntryReady(roomID, e.ID)
		return roomID

	case ingestproto.TypeWatch:
		r := d.rooms.GetOrCreate(roomID)
		r.Touch(now)
		s := sampleFromWatch(pkt.Watch, appName)
		r.Watch.Set(s)
		if d.metrics != nil {
			d.metrics.IncWatchesReceived()
		}
		d.sink.WatchReady(roomID, s.Name)
		return roomID

	case ingestproto.TypeStream:
		r := d.rooms.GetOrCreate(roomID)
		r.Touch(now)
		p := pkt.Stream
		_, first := r.Stream.Add(p.Channel, p.Data, p.Timestamp, p.StreamType, p.Group)
		d.sink.StreamReady(roomID, p.Channel, first)
		return roomID

	case ingestproto.TypeControlCommand:
		cmd := pkt.ControlCommand
		if cmd.Kind == ingestproto.ControlRoomChange {
			newRoom := cmd.RoomID
			if newRoom == "" {
				newRoom = room.DefaultRoomID
			}
			if newRoom == roomID {
				return roomID
			}
			if old, ok := d.rooms.Get(roomID); ok {
				old.RemoveProducer(producerID)
			}
			d.rooms.GetOrCreate(newRoom).AddProducer(producerID)
			d.sink.ProducerMoved(producerID, roomID, newRoom)
			return newRoom
		}

		r := d.rooms.GetOrCreate(roomID)
		r.Touch(now)
		applyControl(r, cmd.Kind)
		d.sink.ControlApplied(roomID, cmd.Kind)
		return roomID
	}
	return roomID
}

func applyControl(r *room.Room, kind ingestproto.ControlKind) {
	switch kind {
	case ingestproto.ControlClearLog:
		r.Ring.Clear()
	case ingestproto.ControlClearWatches:
		r.Watch.Clear()
	case ingestproto.ControlClearProcessFlow:
		r.Tracker.Clear()
	case ingestproto.ControlClearAll:
		r.Clear()
	}
}
