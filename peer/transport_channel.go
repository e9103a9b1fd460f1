package peer

import (
	"locator/message"
	"locator/transport"
)

// transportChannel adapts transport.ClientTransport to the Channel
// interface the registry depends on.
type transportChannel struct {
	t *transport.ClientTransport
}

// WrapTransport builds the Channel a real Dialer returns once it has
// dialed and wrapped the TCP connection.
func WrapTransport(t *transport.ClientTransport) Channel {
	return transportChannel{t: t}
}

func (c transportChannel) StreamCall(serviceMethod string, args any) (<-chan *message.RPCMessage, error) {
	return c.t.StreamCall(serviceMethod, args)
}

func (c transportChannel) Close() error {
	return c.t.Conn().Close()
}
