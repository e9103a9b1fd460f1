package feed

import (
	"encoding/json"
	"sync"

	"locator/catalog"
	"locator/message"
)

// ConnSubscriber adapts a server.StreamHandler's chunk-sending closure
// to the Subscriber interface, so a remote peer's Locator.Synchronize
// RPC can subscribe directly to the feed. The handler that registers
// this blocks on Done until the feed sends the terminal frame or the
// underlying Send starts failing.
type ConnSubscriber struct {
	send func(*message.RPCMessage) error
	done chan struct{}
	once sync.Once
}

// NewConnSubscriber wraps send, the chunk-sending closure a
// server.StreamHandler receives for the Locator.Synchronize call.
func NewConnSubscriber(send func(*message.RPCMessage) error) *ConnSubscriber {
	return &ConnSubscriber{send: send, done: make(chan struct{})}
}

// Send implements Subscriber. A nil snapshot is the terminal frame:
// it closes Done instead of writing to the wire, since the wire's own
// terminal framing (Choke) is written once the StreamHandler returns.
// A failing write also closes Done — the feed has already dropped this
// subscriber from its list and will never deliver a terminal frame of
// its own, so the StreamHandler blocked on Done must be released here.
func (c *ConnSubscriber) Send(snapshot catalog.Snapshot) error {
	if snapshot == nil {
		c.once.Do(func() { close(c.done) })
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		c.once.Do(func() { close(c.done) })
		return err
	}
	if err := c.send(&message.RPCMessage{Payload: payload}); err != nil {
		c.once.Do(func() { close(c.done) })
		return err
	}
	return nil
}

// Done is closed when the feed sends this subscriber its terminal frame
// or when a Send fails; it stays open while sends keep succeeding and
// the feed has not shut down.
func (c *ConnSubscriber) Done() <-chan struct{} {
	return c.done
}
