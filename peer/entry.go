// Package peer implements the per-peer lifecycle state machine (C3):
// Discovered -> Connecting -> Synchronizing -> Live -> Closed, driven
// by multicast announces and the peer's own synchronize stream.
package peer

import (
	"sync"
	"time"

	"locator/catalog"
)

// State is one of the five lifecycle states named in spec § 4.3.
type State int

const (
	Discovered State = iota
	Connecting
	Synchronizing
	Live
	Closed
)

func (s State) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Connecting:
		return "connecting"
	case Synchronizing:
		return "synchronizing"
	case Live:
		return "live"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Entry is one peer's lifecycle state, RPC channel, and heartbeat timer.
type Entry struct {
	Key catalog.PeerKey

	mu        sync.Mutex
	state     State
	channel   Channel
	heartbeat *time.Timer
}

func newEntry(key catalog.PeerKey) *Entry {
	return &Entry{Key: key, state: Discovered}
}

// State reports the current lifecycle state.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Entry) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Entry) setChannel(ch Channel) {
	e.mu.Lock()
	e.channel = ch
	e.mu.Unlock()
}

func (e *Entry) closeChannel() {
	e.mu.Lock()
	ch := e.channel
	e.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

// resetHeartbeat (re)arms the heartbeat timer for d, calling onExpire
// if it is not reset or stopped before firing.
func (e *Entry) resetHeartbeat(d time.Duration, onExpire func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.heartbeat != nil {
		e.heartbeat.Stop()
	}
	e.heartbeat = time.AfterFunc(d, onExpire)
}

func (e *Entry) stopHeartbeat() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.heartbeat != nil {
		e.heartbeat.Stop()
	}
}
