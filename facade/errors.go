package facade

import "errors"

// Client-facing sentinel errors (spec § 7): surfaced to the RPC caller,
// never trigger a peer state-machine transition.
var (
	ErrNameConflict       = errors.New("facade: name already attached")
	ErrNotAttached        = errors.New("facade: name not attached")
	ErrPortsExhausted     = errors.New("facade: port pool exhausted")
	ErrServiceUnavailable = errors.New("facade: service unavailable")
)
