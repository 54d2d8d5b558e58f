// Package ingestproto implements the length-framed binary ingest wire
// protocol: a 2-byte type discriminator, a 4-byte big-endian payload
// length, then a fixed-layout payload of integers and length-prefixed
// UTF-8 strings. It is deliberately network-agnostic: it reads from and
// writes to any io.Reader/io.Writer rather than owning a socket.
package ingestproto

import (
	"time"
)

// Type is the 2-byte wire discriminator prefixing every record.
type Type uint16

const (
	TypeLogHeader      Type = 1
	TypeLogEntry       Type = 2
	TypeProcessFlow    Type = 3
	TypeWatch          Type = 4
	TypeStream         Type = 5
	TypeControlCommand Type = 6
	// TypeAuthToken is the optional first record of a producer session: a
	// 32-256 byte token provided before any other record.
	TypeAuthToken Type = 7
)

// MaxPayloadSize bounds a single record's payload; an oversized payload is
// rejected and the connection closed.
const MaxPayloadSize = 16 << 20 // 16 MiB

// ProcessFlowSubtype distinguishes an Enter from a Leave record.
type ProcessFlowSubtype uint8

const (
	ProcessFlowEnter ProcessFlowSubtype = 0
	ProcessFlowLeave ProcessFlowSubtype = 1
)

// ControlKind selects which clear a controlCommand record requests.
type ControlKind uint8

const (
	ControlClearLog         ControlKind = 0
	ControlClearWatches     ControlKind = 1
	ControlClearAll         ControlKind = 2
	ControlClearProcessFlow ControlKind = 3
	// ControlRoomChange rebinds the producer session to RoomID: room
	// binding may change mid-session if the producer issues this directive.
	ControlRoomChange ControlKind = 4
)

// Packet is the decoded form of one ingest record. Only one of its
// type-specific fields is meaningful, selected by Type.
type Packet struct {
	Type Type

	LogHeader      *LogHeaderPacket
	LogEntry       *LogEntryPacket
	ProcessFlow    *ProcessFlowPacket
	Watch          *WatchPacket
	Stream         *StreamPacket
	ControlCommand *ControlCommandPacket
	AuthToken      *AuthTokenPacket
}

// AuthTokenPacket carries the producer's bearer token when auth is
// required.
type AuthTokenPacket struct {
	Token []byte
}

// LogHeaderPacket carries the producer's application name, updating the
// session's cached appName without itself touching room storage.
type LogHeaderPacket struct {
	AppName string
}

// LogEntryPacket is a fully decoded plain log record.
type LogEntryPacket struct {
	Level       uint8
	Kind        string
	SessionName string
	Title       string
	HostName    string
	ProcessID   int32
	ThreadID    int32
	Timestamp   time.Time
	HasColor    bool
	Color       uint32
	Payload     []byte
	Ctx         map[string]string
}

// ProcessFlowPacket is a method-entry/exit record.
type ProcessFlowPacket struct {
	Subtype     ProcessFlowSubtype
	MethodTitle string
	SessionName string
	HostName    string
	ProcessID   int32
	ThreadID    int32
	Timestamp   time.Time
}

// WatchPacket is one named-value sample.
type WatchPacket struct {
	Name      string
	Value     string
	WatchType string
	Timestamp time.Time
	Group     string
}

// StreamPacket is one high-frequency channel sample.
type StreamPacket struct {
	Channel    string
	Data       []byte
	Timestamp  time.Time
	StreamType string
	Group      string
}

// ControlCommandPacket requests a room-scoped clear, or (Kind ==
// ControlRoomChange) a rebind of the producer session to RoomID.
type ControlCommandPacket struct {
	Kind   ControlKind
	RoomID string
}
