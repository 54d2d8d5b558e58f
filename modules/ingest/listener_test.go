package ingest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/require"

	"github.com/grafana/logrooms/modules/dispatcher"
	"github.com/grafana/logrooms/modules/room"
	"github.com/grafana/logrooms/pkg/ingestproto"
	"github.com/grafana/logrooms/pkg/metrics"
)

type recordingSink struct {
	entries     chan uint64
	connects    chan string
	disconnects chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		entries:     make(chan uint64, 16),
		connects:    make(chan string, 16),
		disconnects: make(chan string, 16),
	}
}

func (s *recordingSink) EntryReady(roomID string, entryID uint64)                   { s.entries <- entryID }
func (s *recordingSink) WatchReady(roomID, watchName string)                        {}
func (s *recordingSink) StreamReady(roomID, channel string, firstSample bool)       {}
func (s *recordingSink) ControlApplied(roomID string, kind ingestproto.ControlKind) {}
func (s *recordingSink) TraceUpdated(roomID, traceID string)                        {}
func (s *recordingSink) ProducerMoved(producerID, oldRoomID, newRoomID string)      {}
func (s *recordingSink) ProducerConnected(producerID, roomID, appName, remoteAddr string) {
	s.connects <- producerID
}

func (s *recordingSink) ProducerDisconnected(producerID, roomID string) {
	s.disconnects <- producerID
}

func testManager() *room.Manager {
	return room.NewManager(room.Config{RingCapacity: 1000, StreamCapacity: 100, TraceTimeout: time.Minute, CompletedCap: 10})
}

func startListener(t *testing.T, cfg Config, sink *recordingSink) (*Listener, string) {
	t.Helper()
	rooms := testManager()
	d := dispatcher.New(rooms, metrics.New(nil), sink)
	cfg.ListenAddr = "127.0.0.1:0"
	l := New(cfg, d)

	require.NoError(t, services.StartAndAwaitRunning(context.Background(), l))
	t.Cleanup(func() {
		_ = services.StopAndAwaitTerminated(context.Background(), l)
	})

	// starting() assigns l.ln before running() returns; poll briefly for
	// the bound address since net.Listen with :0 picks an ephemeral port.
	var addr string
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.ln == nil {
			return false
		}
		addr = l.ln.Addr().String()
		return true
	}, time.Second, 5*time.Millisecond)

	return l, addr
}

func TestProducerConnectAndLogEntryReachesRoom(t *testing.T) {
	sink := newRecordingSink()
	_, addr := startListener(t, Config{}, sink)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, ingestproto.Encode(conn, ingestproto.Packet{
		Type: ingestproto.TypeLogHeader, LogHeader: &ingestproto.LogHeaderPacket{AppName: "svc"},
	}))
	require.NoError(t, ingestproto.Encode(conn, ingestproto.Packet{
		Type: ingestproto.TypeLogEntry,
		LogEntry: &ingestproto.LogEntryPacket{
			Level: 2, Kind: "message", Title: "hi", Timestamp: time.Now(),
		},
	}))

	select {
	case id := <-sink.connects:
		require.NotEmpty(t, id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ProducerConnected")
	}

	select {
	case <-sink.entries:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for EntryReady")
	}
}

func TestProducerAuthRequiredRejectsBadToken(t *testing.T) {
	sink := newRecordingSink()
	_, addr := startListener(t, Config{AuthRequired: true, AuthToken: "correct-horse-battery-staple-0000"}, sink)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	badToken := make([]byte, 32)
	require.NoError(t, ingestproto.Encode(conn, ingestproto.Packet{
		Type: ingestproto.TypeAuthToken, AuthToken: &ingestproto.AuthTokenPacket{Token: badToken},
	}))

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	require.Error(t, err, "connection should be closed on auth failure")
}

func TestProducerAuthRequiredAcceptsGoodToken(t *testing.T) {
	token := "correct-horse-battery-staple-0000"
	sink := newRecordingSink()
	_, addr := startListener(t, Config{AuthRequired: true, AuthToken: token}, sink)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, ingestproto.Encode(conn, ingestproto.Packet{
		Type: ingestproto.TypeAuthToken, AuthToken: &ingestproto.AuthTokenPacket{Token: []byte(token)},
	}))

	select {
	case <-sink.connects:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ProducerConnected after successful auth")
	}
}
