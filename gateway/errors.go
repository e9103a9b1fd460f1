package gateway

import "errors"

// ErrServiceUnavailable is returned by Null.Resolve; the facade turns it
// into its own facade.ErrServiceUnavailable whenever neither a local
// attachment nor a configured gateway can satisfy resolve(name).
var ErrServiceUnavailable = errors.New("gateway: service unavailable")
