package peer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"locator/catalog"
	"locator/gateway"
	"locator/message"
	"locator/reactor"
	"locator/router"

	"github.com/rs/zerolog"
)

// fakeChannel feeds a scripted sequence of chunks to whatever
// StreamCall returns, standing in for a real peer's synchronize stream.
type fakeChannel struct {
	chunks []catalog.Snapshot
	failAt int // -1: never fails and keeps the stream open; otherwise the index at which an error frame replaces the chunk and the stream closes
	closed bool
}

func (f *fakeChannel) StreamCall(serviceMethod string, args any) (<-chan *message.RPCMessage, error) {
	ch := make(chan *message.RPCMessage, len(f.chunks)+1)
	for i, snap := range f.chunks {
		if f.failAt == i {
			ch <- &message.RPCMessage{Error: "boom"}
			close(ch)
			return ch, nil
		}
		payload, _ := json.Marshal(snap)
		ch <- &message.RPCMessage{Payload: payload}
	}
	// A healthy peer keeps its synchronize stream open; closing it
	// would read as a dropped connection and evict the peer.
	return ch, nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestRegistry(dial Dialer) (*Registry, *router.Router, *gateway.Recording) {
	r := router.New(zerolog.Nop())
	gw := gateway.NewRecording()
	react := reactor.New(8)
	reg := New(r, gw, react, dial, zerolog.Nop())
	return reg, r, gw
}

func waitForState(t *testing.T, reg *Registry, uuid string, want State) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			got, ok := reg.StateOf(uuid)
			t.Fatalf("timed out waiting for state %v, last seen %v (known=%v)", want, got, ok)
		default:
			if s, ok := reg.StateOf(uuid); ok && s == want {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestAnnounceDiscoversAndSynchronizes(t *testing.T) {
	fc := &fakeChannel{chunks: []catalog.Snapshot{{"cache": {Version: 1}}}, failAt: -1}
	reg, r, gw := newTestRegistry(func(addr string) (Channel, error) { return fc, nil })

	reg.Announce(catalog.PeerKey{UUID: "peer-1", Hostname: "10.0.0.1", Port: 9000})
	waitForState(t, reg, "peer-1", Live)

	if !r.Has("cache") {
		t.Fatalf("expect router to learn 'cache' from peer-1")
	}
	if len(gw.Events) != 1 || gw.Events[0].Kind != "consume" {
		t.Fatalf("expect one consume event, got %v", gw.Events)
	}
}

func TestConnectFailureDropsDiscoverySilently(t *testing.T) {
	reg, _, _ := newTestRegistry(func(addr string) (Channel, error) { return nil, errDial })

	reg.Announce(catalog.PeerKey{UUID: "peer-1", Hostname: "10.0.0.1", Port: 9000})
	time.Sleep(50 * time.Millisecond)

	if reg.Count() != 0 {
		t.Fatalf("expect discovery dropped after connect failure, got %d entries", reg.Count())
	}
}

func TestStreamErrorEvictsPeerAndCleansUpGateway(t *testing.T) {
	fc := &fakeChannel{chunks: []catalog.Snapshot{{"cache": {Version: 1}}, {"cache": {Version: 1}}}, failAt: 1}
	reg, r, gw := newTestRegistry(func(addr string) (Channel, error) { return fc, nil })

	reg.Announce(catalog.PeerKey{UUID: "peer-1", Hostname: "10.0.0.1", Port: 9000})

	deadline := time.After(time.Second)
	for reg.Count() != 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for eviction")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if r.Has("cache") {
		t.Fatalf("expect 'cache' evicted from router after peer stream error")
	}
	found := false
	for _, ev := range gw.Events {
		if ev.Kind == "cleanup" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expect a cleanup event, got %v", gw.Events)
	}
	if !fc.closed {
		t.Fatalf("expect channel closed on eviction")
	}
}

var errDial = errors.New("dial failed")
