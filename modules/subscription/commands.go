package subscription

import "time"

// Command kinds a subscriber may send.
const (
	CmdSubscribe              = "subscribe"
	CmdPause                  = "pause"
	CmdResume                 = "resume"
	CmdGetSince               = "getSince"
	CmdSwitchRoom             = "switchRoom"
	CmdGetRooms               = "getRooms"
	CmdSubscribeStream        = "subscribeStream"
	CmdUnsubscribeStream      = "unsubscribeStream"
	CmdPauseStream            = "pauseStream"
	CmdResumeStream           = "resumeStream"
	CmdGetStreamSubscriptions = "getStreamSubscriptions"
)

// command is the generic client-to-server envelope; only the fields
// relevant to Type are populated by the client.
type command struct {
	Type    string          `json:"type"`
	Filters *commandFilters `json:"filters,omitempty"`
	SinceID uint64          `json:"sinceId,omitempty"`
	Room    string          `json:"room,omitempty"`
	Channel string          `json:"channel,omitempty"`
}

// commandFilters is the wire shape of a subscribe command's filter set,
// translated into entrystore.Filter before use.
type commandFilters struct {
	Sessions       []string   `json:"sessions,omitempty"`
	Levels         []int      `json:"levels,omitempty"`
	From           *time.Time `json:"from,omitempty"`
	To             *time.Time `json:"to,omitempty"`
	TitlePattern   string     `json:"titlePattern,omitempty"`
	MessagePattern string     `json:"messagePattern,omitempty"`
	InverseMatch   bool       `json:"inverseMatch,omitempty"`
}
