// Package announce implements the multicast announce engine (C4): a
// periodic outbound identity broadcast and an inbound listener that
// bridges discovered peer keys into the peer registry.
//
// Two UDP sockets on the same fixed port: one "connected" to the
// configured multicast group so ordinary Write calls go to that
// destination, one joined to the group's membership and bound to the
// wildcard address so it receives the other members' datagrams.
// Multicast loopback is disabled on the outbound socket, and any frame
// that still carries this node's own uuid is dropped by the receive
// loop before it reaches onPeer.
package announce

import (
	"encoding/json"
	"net"

	"locator/catalog"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
)

// DefaultPort is the fixed UDP port the spec names for the announce
// channel.
const DefaultPort = 10054

// Interval is how often this node's identity is re-emitted.
const Interval = 5 // seconds, kept as an int to avoid importing time just for this constant's doc value

// Engine owns the outbound and inbound multicast sockets and the
// periodic announce timer.
type Engine struct {
	self   catalog.PeerKey
	out    *net.UDPConn
	in     *net.UDPConn
	onPeer func(catalog.PeerKey)
	log    zerolog.Logger
	done   chan struct{}
}

// New opens both sockets for groupAddr (e.g. "239.0.0.1") on
// DefaultPort, bound to iface (nil selects the default multicast
// interface). onPeer is invoked for every inbound frame from another
// node, including duplicates of already-known peers — the caller (normally
// peer.Registry.Announce) is responsible for de-duplication.
func New(self catalog.PeerKey, groupAddr string, iface *net.Interface, onPeer func(catalog.PeerKey), log zerolog.Logger) (*Engine, error) {
	group := &net.UDPAddr{IP: net.ParseIP(groupAddr), Port: DefaultPort}

	out, err := net.DialUDP("udp4", nil, group)
	if err != nil {
		return nil, err
	}
	if pc := ipv4.NewPacketConn(out); pc != nil {
		pc.SetMulticastLoopback(false)
	}

	in, err := net.ListenUDP("udp4", &net.UDPAddr{Port: DefaultPort})
	if err != nil {
		out.Close()
		return nil, err
	}
	pc := ipv4.NewPacketConn(in)
	if err := pc.JoinGroup(iface, group); err != nil {
		out.Close()
		in.Close()
		return nil, err
	}

	return &Engine{
		self:   self,
		out:    out,
		in:     in,
		onPeer: onPeer,
		log:    log.With().Str("component", "announce").Logger(),
		done:   make(chan struct{}),
	}, nil
}

// Start launches the outbound periodic announce and the inbound
// receive loop, each on its own goroutine.
func (e *Engine) Start(tick <-chan struct{}) {
	go e.announceLoop(tick)
	go e.receiveLoop()
}

func (e *Engine) announceLoop(tick <-chan struct{}) {
	for {
		select {
		case <-tick:
			e.announceOnce()
		case <-e.done:
			return
		}
	}
}

func (e *Engine) announceOnce() {
	frame, err := json.Marshal(e.self)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to encode announce frame")
		return
	}
	if _, err := e.out.Write(frame); err != nil {
		e.log.Warn().Err(err).Msg("announce send failed")
	}
}

func (e *Engine) receiveLoop() {
	buf := make([]byte, 2048)
	for {
		n, _, err := e.in.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-e.done:
				return
			default:
				e.log.Warn().Err(err).Msg("announce receive failed")
				continue
			}
		}

		var key catalog.PeerKey
		if err := json.Unmarshal(buf[:n], &key); err != nil {
			e.log.Warn().Err(err).Msg("malformed announce frame, dropped")
			continue
		}
		if key.UUID == e.self.UUID {
			continue
		}
		e.onPeer(key)
	}
}

// Stop closes both sockets and releases the receive loop.
func (e *Engine) Stop() {
	close(e.done)
	e.out.Close()
	e.in.Close()
}
