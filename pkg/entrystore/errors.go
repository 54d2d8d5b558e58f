package entrystore

import "errors"

// ErrCapacityInvalid is returned by Resize when asked to resize to a
// non-positive capacity; the ring is left unchanged.
var ErrCapacityInvalid = errors.New("entrystore: invalid capacity")
