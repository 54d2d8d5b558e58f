// Package subscription implements the subscriber registry, per-subscriber
// filter/pause state, and fan-out through two throttlers (entries and
// watches) plus immediate stream delivery: one handler per
// inbound command, writing typed response structs back over the socket.
package subscription

import (
	"github.com/grafana/logrooms/modules/room"
	"github.com/grafana/logrooms/pkg/entrystore"
	"github.com/grafana/logrooms/pkg/streamstore"
	"github.com/grafana/logrooms/pkg/traceagg"
	"github.com/grafana/logrooms/pkg/watchstore"
)

// Server-to-client message kinds.
const (
	KindInit                 = "init"
	KindEntries              = "entries"
	KindWatch                = "watch"
	KindStream               = "stream"
	KindTrace                = "trace"
	KindClear                = "clear"
	KindClientConnect        = "clientConnect"
	KindClientDisconnect     = "clientDisconnect"
	KindConnectionEvent      = "connectionEvent"
	KindRoomCreated          = "roomCreated"
	KindRoomSwitched         = "roomSwitched"
	KindRooms                = "rooms"
	KindStreamSubscribed     = "streamSubscribed"
	KindStreamUnsubscribed   = "streamUnsubscribed"
	KindStreamPaused         = "streamPaused"
	KindStreamResumed        = "streamResumed"
	KindStreamSubscriptions  = "streamSubscriptions"
	KindError                = "error"
)

type initMsg struct {
	Type          string                       `json:"type"`
	RoomID        string                       `json:"roomId"`
	EntryCount    int                          `json:"entryCount"`
	Capacity      int                          `json:"capacity"`
	Watches       map[string]watchstore.Sample `json:"watches"`
	Sessions      []string                     `json:"sessions"`
	Rooms         []room.Info                  `json:"rooms"`
	ProducerCount int                          `json:"producerCount"`
}

type entriesMsg struct {
	Type    string             `json:"type"`
	RoomID  string             `json:"roomId"`
	Entries []*entrystore.Entry `json:"entries"`
}

type watchMsg struct {
	Type   string           `json:"type"`
	RoomID string           `json:"roomId"`
	Sample watchstore.Sample `json:"sample"`
}

type streamMsg struct {
	Type   string            `json:"type"`
	RoomID string            `json:"roomId"`
	Entry  streamstore.Entry `json:"entry"`
}

type traceMsg struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Summary traceagg.Summary `json:"summary"`
}

type clearMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Kind   string `json:"kind"`
}

type clientConnectMsg struct {
	Type       string `json:"type"`
	RoomID     string `json:"roomId"`
	ProducerID string `json:"producerId"`
	AppName    string `json:"appName"`
	RemoteAddr string `json:"remoteAddr"`
}

type clientDisconnectMsg struct {
	Type       string `json:"type"`
	RoomID     string `json:"roomId"`
	ProducerID string `json:"producerId"`
}

type roomCreatedMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type roomSwitchedMsg struct {
	Type string  `json:"type"`
	Init initMsg `json:"init"`
}

type roomsMsg struct {
	Type  string      `json:"type"`
	Rooms []room.Info `json:"rooms"`
}

type streamChannelMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

type streamSubscriptionsMsg struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
