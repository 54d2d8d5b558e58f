package ingestproto

import "errors"

// ErrMalformedFrame is returned when a record's payload does not parse
// according to its type's fixed layout; the session closes the offending
// producer connection rather than attempting to resynchronise.
var ErrMalformedFrame = errors.New("ingestproto: malformed frame")

// ErrOversizedPayload is returned when a record's declared length exceeds
// MaxPayloadSize; the frame is rejected and the connection closed.
var ErrOversizedPayload = errors.New("ingestproto: oversized payload")

// ErrUnknownType is returned for a type discriminator this decoder does not
// recognise; treated the same as a malformed frame by the session.
var ErrUnknownType = errors.New("ingestproto: unknown record type")
