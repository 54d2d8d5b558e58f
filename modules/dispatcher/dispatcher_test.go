package dispatcher

import (
	"testing"
	"time"

	"github.com/grafana/logrooms/modules/room"
	"github.com/grafana/logrooms/pkg/ingestproto"
	"github.com/grafana/logrooms/pkg/metrics"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	entries       []string
	watches       []string
	streams       []string
	firstFlags    []bool
	controls      []ingestproto.ControlKind
	traceUpdates  []string
	producerMoves [][3]string
}

func newFakeSink() *fakeSink {
	return &fakeSink{}
}

func (f *fakeSink) EntryReady(roomID string, entryID uint64) { f.entries = append(f.entries, roomID) }

func (f *fakeSink) WatchReady(roomID, watchName string) { f.watches = append(f.watches, watchName) }

func (f *fakeSink) StreamReady(roomID, channel string, firstSample bool) {
	f.streams = append(f.streams, channel)
	f.firstFlags = append(f.firstFlags, firstSample)
}

func (f *fakeSink) ControlApplied(roomID string, kind ingestproto.ControlKind) {
	f.controls = append(f.controls, kind)
}

func (f *fakeSink) TraceUpdated(roomID, traceID string) {
	f.traceUpdates = append(f.traceUpdates, traceID)
}

func (f *fakeSink) ProducerMoved(producerID, oldRoomID, newRoomID string) {
	f.producerMoves = append(f.producerMoves, [3]string{producerID, oldRoomID, newRoomID})
}

func (f *fakeSink) ProducerConnected(producerID, roomID, appName, remoteAddr string) {}

func (f *fakeSink) ProducerDisconnected(producerID, roomID string) {}

func testManager() *room.Manager {
	return room.NewManager(room.Config{RingCapacity: 100, StreamCapacity: 50, TraceTimeout: time.Minute, CompletedCap: 10})
}

func TestDispatchLogEntryPushesAndNotifies(t *testing.T) {
	rooms := testManager()
	sink := newFakeSink()
	d := New(rooms, metrics.New(nil), sink)

	roomID := d.Dispatch("p1", room.DefaultRoomID, "svc", ingestproto.Packet{
		Type: ingestproto.TypeLogEntry,
		LogEntry: &ingestproto.LogEntryPacket{
			Level: 2, Kind: "message", Title: "hello", Timestamp: time.Now(),
		},
	}, time.Now())

	require.Equal(t, room.DefaultRoomID, roomID)
	require.Len(t, sink.entries, 1)
	r, _ := rooms.Get(room.DefaultRoomID)
	require.Equal(t, 1, r.Ring.Size())
}

func TestDispatchLogEntryWithTraceIDNotifiesTrace(t *testing.T) {
	rooms := testManager()
	sink := newFakeSink()
	d := New(rooms, metrics.New(nil), sink)

	d.Dispatch("p1", room.DefaultRoomID, "svc", ingestproto.Packet{
		Type: ingestproto.TypeLogEntry,
		LogEntry: &ingestproto.LogEntryPacket{
			Level: 2, Kind: "message", Timestamp: time.Now(),
			Ctx: map[string]string{"_traceId": "T1"},
		},
	}, time.Now())

	require.Equal(t, []string{"T1"}, sink.traceUpdates)
}

func TestDispatchProcessFlowUpdatesTracker(t *testing.T) {
	rooms := testManager()
	sink := newFakeSink()
	d := New(rooms, metrics.New(nil), sink)

	d.Dispatch("p1", room.DefaultRoomID, "svc", ingestproto.Packet{
		Type: ingestproto.TypeProcessFlow,
		ProcessFlow: &ingestproto.ProcessFlowPacket{
			Subtype: ingestproto.ProcessFlowEnter, MethodTitle: "DoWork", HostName: "h1", Timestamp: time.Now(),
		},
	}, time.Now())

	r, _ := rooms.Get(room.DefaultRoomID)
	require.Equal(t, 1, r.Tracker.Depth("h1"))
}

func TestDispatchWatchSetsStoreAndNotifies(t *testing.T) {
	rooms := testManager()
	sink := newFakeSink()
	d := New(rooms, metrics.New(nil), sink)

	d.Dispatch("p1", room.DefaultRoomID, "svc", ingestproto.Packet{
		Type: ingestproto.TypeWatch,
		Watch: &ingestproto.WatchPacket{Name: "q", Value: "10", Timestamp: time.Now()},
	}, time.Now())

	require.Equal(t, []string{"q"}, sink.watches)
	r, _ := rooms.Get(room.DefaultRoomID)
	s, ok := r.Watch.Current("q")
	require.True(t, ok)
	require.Equal(t, float64(10), s.Value)
}

func TestDispatchStreamFirstSampleFlag(t *testing.T) {
	rooms := testManager()
	sink := newFakeSink()
	d := New(rooms, metrics.New(nil), sink)

	pkt := ingestproto.Packet{Type: ingestproto.TypeStream, Stream: &ingestproto.StreamPacket{
		Channel: "cpu", Data: []byte{1}, Timestamp: time.Now(),
	}}
	d.Dispatch("p1", room.DefaultRoomID, "svc", pkt, time.Now())
	d.Dispatch("p1", room.DefaultRoomID, "svc", pkt, time.Now())

	require.Len(t, sink.streams, 2)
	require.Equal(t, []bool{true, false}, sink.firstFlags)
}

func TestDispatchControlClearAll(t *testing.T) {
	rooms := testManager()
	sink := newFakeSink()
	d := New(rooms, metrics.New(nil), sink)

	d.Dispatch("p1", room.DefaultRoomID, "svc", ingestproto.Packet{
		Type: ingestproto.TypeLogEntry,
		LogEntry: &ingestproto.LogEntryPacket{Level: 2, Kind: "message", Timestamp: time.Now()},
	}, time.Now())

	d.Dispatch("p1", room.DefaultRoomID, "svc", ingestproto.Packet{
		Type:           ingestproto.TypeControlCommand,
		ControlCommand: &ingestproto.ControlCommandPacket{Kind: ingestproto.ControlClearAll},
	}, time.Now())

	r, _ := rooms.Get(room.DefaultRoomID)
	require.Equal(t, 0, r.Ring.Size())
	require.Equal(t, []ingestproto.ControlKind{ingestproto.ControlClearAll}, sink.controls)
}

func TestDispatchRoomChangeMovesProducer(t *testing.T) {
	rooms := testManager()
	sink := newFakeSink()
	d := New(rooms, metrics.New(nil), sink)

	def, _ := rooms.Get(room.DefaultRoomID)
	def.AddProducer("p1")

	newRoomID := d.Dispatch("p1", room.DefaultRoomID, "svc", ingestproto.Packet{
		Type:           ingestproto.TypeControlCommand,
		ControlCommand: &ingestproto.ControlCommandPacket{Kind: ingestproto.ControlRoomChange, RoomID: "room-b"},
	}, time.Now())

	require.Equal(t, "room-b", newRoomID)
	require.Equal(t, 0, def.ProducerCount())
	other, ok := rooms.Get("room-b")
	require.True(t, ok)
	require.Equal(t, 1, other.ProducerCount())
	require.Equal(t, [][3]string{{"p1", room.DefaultRoomID, "room-b"}}, sink.producerMoves)
}
