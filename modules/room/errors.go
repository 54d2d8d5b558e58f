package room

import "errors"

// ErrRoomNotFound is returned when an operation addresses a room id that
// has never been created.
var ErrRoomNotFound = errors.New("room: not found")

// ErrDefaultRoomUndeletable is returned by Delete(DefaultRoomID).
var ErrDefaultRoomUndeletable = errors.New("room: default room cannot be deleted")

// ErrCapacityInvalid is returned by Config.Validate when a resize or
// configured capacity falls outside the supported range.
var ErrCapacityInvalid = errors.New("room: capacity out of valid range")
