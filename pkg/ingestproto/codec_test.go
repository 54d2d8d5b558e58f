package ingestproto

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, pkt Packet) Packet {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, pkt))
	got, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)
	return got
}

func TestRoundTripLogHeader(t *testing.T) {
	pkt := Packet{Type: TypeLogHeader, LogHeader: &LogHeaderPacket{AppName: "checkout-service"}}
	got := roundTrip(t, pkt)
	require.Equal(t, "checkout-service", got.LogHeader.AppName)
}

func TestRoundTripLogEntryWithCtxAndPayload(t *testing.T) {
	ts := time.UnixMicro(1_700_000_000_123_456).UTC()
	pkt := Packet{Type: TypeLogEntry, LogEntry: &LogEntryPacket{
		Level: 4, Kind: "message", SessionName: "sess-1", Title: "order failed",
		HostName: "host-a", ProcessID: 42, ThreadID: 7, Timestamp: ts,
		HasColor: true, Color: 0xFF0000FF,
		Payload: []byte{1, 2, 3, 4},
		Ctx:     map[string]string{"_traceId": "T1", "_spanId": "S1"},
	}}
	got := roundTrip(t, pkt)
	require.Equal(t, uint8(4), got.LogEntry.Level)
	require.Equal(t, "order failed", got.LogEntry.Title)
	require.True(t, got.LogEntry.Timestamp.Equal(ts))
	require.True(t, got.LogEntry.HasColor)
	require.Equal(t, uint32(0xFF0000FF), got.LogEntry.Color)
	require.Equal(t, []byte{1, 2, 3, 4}, got.LogEntry.Payload)
	require.Equal(t, "T1", got.LogEntry.Ctx["_traceId"])
}

func TestRoundTripLogEntryWithoutOptionalFields(t *testing.T) {
	pkt := Packet{Type: TypeLogEntry, LogEntry: &LogEntryPacket{
		Level: 0, Kind: "message", Timestamp: time.UnixMicro(1000).UTC(),
	}}
	got := roundTrip(t, pkt)
	require.False(t, got.LogEntry.HasColor)
	require.Nil(t, got.LogEntry.Payload)
	require.Nil(t, got.LogEntry.Ctx)
}

func TestRoundTripProcessFlow(t *testing.T) {
	ts := time.UnixMicro(5_000_000).UTC()
	pkt := Packet{Type: TypeProcessFlow, ProcessFlow: &ProcessFlowPacket{
		Subtype: ProcessFlowEnter, MethodTitle: "DoWork", HostName: "h1", Timestamp: ts,
	}}
	got := roundTrip(t, pkt)
	require.Equal(t, ProcessFlowEnter, got.ProcessFlow.Subtype)
	require.Equal(t, "DoWork", got.ProcessFlow.MethodTitle)
}

func TestRoundTripWatch(t *testing.T) {
	pkt := Packet{Type: TypeWatch, Watch: &WatchPacket{
		Name: "queue_depth", Value: "42", WatchType: "number", Timestamp: time.UnixMicro(1).UTC(), Group: "infra",
	}}
	got := roundTrip(t, pkt)
	require.Equal(t, "queue_depth", got.Watch.Name)
	require.Equal(t, "42", got.Watch.Value)
}

func TestRoundTripStream(t *testing.T) {
	pkt := Packet{Type: TypeStream, Stream: &StreamPacket{
		Channel: "cpu", Data: []byte{9, 9, 9}, Timestamp: time.UnixMicro(2).UTC(), StreamType: "metric",
	}}
	got := roundTrip(t, pkt)
	require.Equal(t, "cpu", got.Stream.Channel)
	require.Equal(t, []byte{9, 9, 9}, got.Stream.Data)
}

func TestRoundTripControlCommand(t *testing.T) {
	pkt := Packet{Type: TypeControlCommand, ControlCommand: &ControlCommandPacket{Kind: ControlClearAll}}
	got := roundTrip(t, pkt)
	require.Equal(t, ControlClearAll, got.ControlCommand.Kind)
	require.Empty(t, got.ControlCommand.RoomID)
}

func TestRoundTripControlCommandRoomChange(t *testing.T) {
	pkt := Packet{Type: TypeControlCommand, ControlCommand: &ControlCommandPacket{Kind: ControlRoomChange, RoomID: "room-b"}}
	got := roundTrip(t, pkt)
	require.Equal(t, ControlRoomChange, got.ControlCommand.Kind)
	require.Equal(t, "room-b", got.ControlCommand.RoomID)
}

func TestRoundTripAuthToken(t *testing.T) {
	tok := bytes.Repeat([]byte{0xAB}, 32)
	pkt := Packet{Type: TypeAuthToken, AuthToken: &AuthTokenPacket{Token: tok}}
	got := roundTrip(t, pkt)
	require.Equal(t, tok, got.AuthToken.Token)
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, byte(TypeLogHeader)})
	var lenBytes [4]byte
	lenBytes[0] = 0xFF // declares an absurd length
	buf.Write(lenBytes[:])
	_, err := NewDecoder(&buf).Decode()
	require.ErrorIs(t, err, ErrOversizedPayload)
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Packet{Type: TypeLogHeader, LogHeader: &LogHeaderPacket{AppName: "svc"}}))
	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := NewDecoder(bytes.NewReader(truncated)).Decode()
	require.Error(t, err)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0, 0, 0, 0})
	_, err := NewDecoder(&buf).Decode()
	require.ErrorIs(t, err, ErrUnknownType)
}
