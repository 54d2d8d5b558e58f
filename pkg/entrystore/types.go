// Package entrystore implements the ring buffer of log entries: a bounded
// circular array plus secondary indexes by session, level, correlation
// id, and context-tag key/value.
package entrystore

import "time"

// Level is the ordered entry severity (Debug < Verbose < Message < Warning <
// Error < Fatal). Entry filters match levels by set membership; the trace
// aggregator compares them numerically to flag error spans.
type Level int

const (
	Debug Level = iota
	Verbose
	Message
	Warning
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Verbose:
		return "verbose"
	case Message:
		return "message"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Kind is the LogEntryType of an entry.
type Kind string

const (
	KindMessage          Kind = "message"
	KindBinary           Kind = "binary"
	KindObject           Kind = "object"
	KindSource           Kind = "source"
	KindProcessFlowEnter Kind = "enter"
	KindProcessFlowLeave Kind = "leave"
)

// IsProcessFlow reports whether this kind is handled by the method-context
// tracker rather than treated as a plain log line.
func (k Kind) IsProcessFlow() bool {
	return k == KindProcessFlowEnter || k == KindProcessFlowLeave
}

// Reserved ctx keys that drive the trace aggregator; everything else in
// Ctx is an open, application-defined tag.
const (
	CtxTraceID        = "_traceId"
	CtxSpanID         = "_spanId"
	CtxParentSpanID   = "_parentSpanId"
	CtxSpanName       = "_spanName"
	CtxSpanKind       = "_spanKind"
	CtxSpanDurationMs = "_spanDuration"
	CtxSpanStatus     = "_spanStatus"
	CtxSpanStatusDesc = "_spanStatusDesc"
	CtxCorrelationID  = "_correlationId"
)

// Entry is a single log record. Once pushed, every field is immutable
// except Depth/ParentID/Context/MatchingEnterID, which the method-context
// tracker and trace aggregator may set before or immediately after
// insertion into the ring.
type Entry struct {
	ID         uint64
	ReceivedAt time.Time

	AppName     string
	SessionName string
	HostName    string
	ProcessID   int32
	ThreadID    int32

	Timestamp time.Time
	Level     Level
	Kind      Kind

	Title   string
	Color   *uint32
	Binary  []byte
	Ctx     map[string]string

	// Derived fields, attached by the method-context tracker.
	Depth           int
	ParentID        *uint64
	Context         []string
	MatchingEnterID *uint64
}

// CorrelationID returns the correlation id carried in ctx, if any.
func (e *Entry) CorrelationID() (string, bool) {
	v, ok := e.Ctx[CtxCorrelationID]
	return v, ok
}

// TraceID returns the trace id carried in ctx, if any.
func (e *Entry) TraceID() (string, bool) {
	v, ok := e.Ctx[CtxTraceID]
	return v, ok
}

// Filter is a subscriber or query filter evaluated against a decoded
// entry, not against re-sorted query results.
type Filter struct {
	Sessions       map[string]struct{}
	Levels         map[Level]struct{}
	From, To       time.Time
	TitlePattern   string
	MessagePattern string
	InverseMatch   bool
	CorrelationID  string
	ContextTag     string // "key=value", matched against Ctx
}
