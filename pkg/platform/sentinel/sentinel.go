package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and the registry service translates them into coded domain errors.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: a write-once or unique key is already taken
//   - ErrCapacity: a bounded collection is full
//   - ErrUnavailable: backing service temporarily unavailable
//
// Validation failures never surface as sentinels; use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrCapacity    = errors.New("capacity reached")
	ErrUnavailable = errors.New("unavailable")
)
