// Package idgen owns the process-wide monotonic id counters. Entry ids and
// stream entry ids are assigned from separate atomic sources and are never
// reset on room clear, since "cleared" entries may still be referenced by a
// subscriber's lastDeliveredEntryId.
package idgen

import "go.uber.org/atomic"

var (
	entryIDs  = atomic.NewUint64(0)
	streamIDs = atomic.NewUint64(0)
)

// NextEntryID returns the next globally unique, strictly increasing entry id.
func NextEntryID() uint64 {
	return entryIDs.Inc()
}

// NextStreamID returns the next globally unique, strictly increasing stream
// entry id. It is a distinct counter from NextEntryID.
func NextStreamID() uint64 {
	return streamIDs.Inc()
}
