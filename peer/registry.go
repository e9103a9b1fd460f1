package peer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"locator/catalog"
	"locator/gateway"
	"locator/message"
	"locator/reactor"
	"locator/router"

	"github.com/rs/zerolog"
)

// HeartbeatTimeout is the 60 s window from spec § 3/§ 4.3: a peer
// entry is evicted if no announce or chunk has been seen for this long.
const HeartbeatTimeout = 60 * time.Second

// Dialer opens an RPC channel to a peer's advertised address.
type Dialer func(addr string) (Channel, error)

// Channel is the subset of transport.ClientTransport the peer registry
// depends on, so tests can substitute a fake without a real socket.
type Channel interface {
	StreamCall(serviceMethod string, args any) (<-chan *message.RPCMessage, error)
	Close() error
}

// Registry tracks one Entry per known remote node and drives its state
// machine from announces and synchronize chunks.
type Registry struct {
	router  *router.Router
	gateway gateway.Gateway
	reactor *reactor.Reactor
	dial    Dialer
	log     zerolog.Logger

	mu      sync.Mutex
	entries map[string]*Entry
}

func New(r *router.Router, gw gateway.Gateway, react *reactor.Reactor, dial Dialer, log zerolog.Logger) *Registry {
	return &Registry{
		router:  r,
		gateway: gw,
		reactor: react,
		dial:    dial,
		log:     log.With().Str("component", "peer").Logger(),
		entries: make(map[string]*Entry),
	}
}

// Announce processes one multicast announce frame (C4). An unknown
// uuid starts discovery; a known uuid simply resets its heartbeat.
func (reg *Registry) Announce(key catalog.PeerKey) {
	reg.mu.Lock()
	e, known := reg.entries[key.UUID]
	reg.mu.Unlock()

	if known {
		e.resetHeartbeat(HeartbeatTimeout, func() { reg.reactor.Post(func() { reg.evict(e) }) })
		return
	}

	e = newEntry(key)
	reg.mu.Lock()
	reg.entries[key.UUID] = e
	reg.mu.Unlock()

	reg.log.Info().Str("uuid", key.UUID).Str("host", key.Hostname).Msg("discovered peer")
	go reg.connect(e)
}

// connect attempts to open a channel to e's advertised address. On
// failure the discovery is dropped silently, per spec § 4.3: a
// subsequent announce will retry.
func (reg *Registry) connect(e *Entry) {
	e.setState(Connecting)

	addr := fmt.Sprintf("%s:%d", e.Key.Hostname, e.Key.Port)
	ch, err := reg.dial(addr)
	if err != nil {
		reg.log.Warn().Err(err).Str("addr", addr).Msg("peer connect failed")
		reg.mu.Lock()
		if cur, ok := reg.entries[e.Key.UUID]; ok && cur == e {
			delete(reg.entries, e.Key.UUID)
		}
		reg.mu.Unlock()
		return
	}

	e.setChannel(ch)
	reg.synchronize(e, ch)
}

func (reg *Registry) synchronize(e *Entry, ch Channel) {
	e.setState(Synchronizing)
	e.resetHeartbeat(HeartbeatTimeout, func() { reg.reactor.Post(func() { reg.evict(e) }) })

	stream, err := ch.StreamCall("Locator.Synchronize", struct{}{})
	if err != nil {
		reg.log.Warn().Err(err).Str("uuid", e.Key.UUID).Msg("synchronize request failed")
		reg.evict(e)
		return
	}
	go reg.consume(e, ch, stream)
}

// consume processes every chunk of a peer's synchronize stream. A
// malformed chunk evicts the peer (spec § 7: "protocol decode ...
// peer evicted for synchronize chunks, strict"). Eviction from within
// this loop is deferred to the reactor: the message argument borrows
// memory owned by the channel, and must not be torn down synchronously
// from its own callback.
func (reg *Registry) consume(e *Entry, ch Channel, stream <-chan *message.RPCMessage) {
	for msg := range stream {
		if msg.Error != "" {
			reg.log.Info().Str("uuid", e.Key.UUID).Str("err", msg.Error).Msg("peer closed synchronize stream")
			reg.reactor.Post(func() { reg.evict(e) })
			return
		}

		var snapshot catalog.Snapshot
		if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
			reg.log.Warn().Err(err).Str("uuid", e.Key.UUID).Msg("malformed synchronize chunk, evicting")
			reg.reactor.Post(func() { reg.evict(e) })
			return
		}

		e.setState(Live)
		e.resetHeartbeat(HeartbeatTimeout, func() { reg.reactor.Post(func() { reg.evict(e) }) })

		added, removed := reg.router.UpdateRemote(e.Key.UUID, snapshot)
		for name := range removed {
			reg.gateway.Cleanup(e.Key.UUID, name)
		}
		for name, desc := range added {
			reg.gateway.Consume(e.Key.UUID, name, desc)
		}
	}
	// Stream channel closed without an error frame: treat as a dropped
	// connection, same as any other channel failure.
	reg.reactor.Post(func() { reg.evict(e) })
}

// evict tears an entry down: it is idempotent and safe to call from
// the reactor goroutine or, for a connect/synchronize failure that has
// not yet dispatched any message, synchronously.
func (reg *Registry) evict(e *Entry) {
	reg.mu.Lock()
	cur, ok := reg.entries[e.Key.UUID]
	if !ok || cur != e {
		reg.mu.Unlock()
		return
	}
	delete(reg.entries, e.Key.UUID)
	reg.mu.Unlock()

	e.setState(Closed)
	e.stopHeartbeat()
	e.closeChannel()

	removed := reg.router.RemoveRemote(e.Key.UUID)
	for name := range removed {
		reg.gateway.Cleanup(e.Key.UUID, name)
	}
	reg.log.Info().Str("uuid", e.Key.UUID).Msg("peer evicted")
}

// Count reports the number of tracked peer entries, for tests and
// operational reporting.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.entries)
}

// StateOf reports the current state of uuid's entry, if any.
func (reg *Registry) StateOf(uuid string) (State, bool) {
	reg.mu.Lock()
	e, ok := reg.entries[uuid]
	reg.mu.Unlock()
	if !ok {
		return 0, false
	}
	return e.State(), true
}
