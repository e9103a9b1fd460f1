package client

import (
	"encoding/json"
	"fmt"
	"locator/codec"
	"locator/loadbalance"
	"locator/registry"
	"locator/transport"
	"net"
	"strings"
	"sync"
)

// Client resolves a service name through a registry and load balancer,
// then reuses a pooled multiplexed transport to each resolved address.
type Client struct {
	registry  registry.Registry // find service instance from registry
	balancer  loadbalance.Balancer
	pools     map[string]*transport.ConnPool // one ConnPool per resolved address
	codecType codec.CodecType
	mu        sync.Mutex
	poolSize  int
}

func NewClient(reg registry.Registry, bal loadbalance.Balancer, codecType byte, poolSize int) *Client {
	return &Client{
		registry:  reg,
		balancer:  bal,
		pools:     make(map[string]*transport.ConnPool),
		codecType: codec.CodecType(codecType),
		poolSize:  poolSize,
	}
}

func (c *Client) poolFor(addr string) *transport.ConnPool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pool, ok := c.pools[addr]
	if !ok {
		pool = transport.NewConnPool(addr, c.poolSize, func() (net.Conn, error) {
			return net.Dial("tcp", addr)
		})
		c.pools[addr] = pool
	}
	return pool
}

// getTransport borrows a pooled connection for addr and returns the
// ClientTransport multiplexer attached to it, creating one on first use
// so the connection's recvLoop/heartbeatLoop goroutines are started
// exactly once and survive across Get/Put cycles.
func (c *Client) getTransport(addr string) (*transport.PoolConn, *transport.ClientTransport, error) {
	conn, err := c.poolFor(addr).Get()
	if err != nil {
		return nil, nil, err
	}
	if conn.Transport == nil {
		conn.Transport = transport.NewClientTransport(conn, c.codecType)
	}
	return conn, conn.Transport, nil
}

func (c *Client) putTransport(addr string, conn *transport.PoolConn) {
	c.poolFor(addr).Put(conn)
}

func (c *Client) Call(serviceMethod string, args any, reply any) error {
	split := strings.Split(serviceMethod, ".")
	if len(split) != 2 {
		return fmt.Errorf("invalid serviceMethod format: %v", serviceMethod)
	}
	serviceName := split[0]

	// Get service instances from registry
	instances, err := c.registry.Discover(serviceName)
	if err != nil {
		return err
	}

	// Select an instance using load balancer
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return err
	}

	// Borrow a pooled transport for the selected instance
	conn, t, err := c.getTransport(instance.Addr)
	if err != nil {
		return err
	}
	defer c.putTransport(instance.Addr, conn)

	// Send the request and wait for the response
	_, ch, err := t.Send(serviceMethod, args)
	if err != nil {
		return err
	}

	resp := <-ch
	if resp.Error != "" {
		return fmt.Errorf("server error: %v", resp.Error)
	}

	return json.Unmarshal(resp.Payload, &reply)
}

// Stream resolves serviceMethod the same way Call does, but consumes a
// sequence of Chunk frames via onChunk until the stream's terminal
// frame arrives. A non-nil return from onChunk aborts the stream early.
func (c *Client) Stream(serviceMethod string, args any, onChunk func(payload []byte) error) error {
	split := strings.Split(serviceMethod, ".")
	if len(split) != 2 {
		return fmt.Errorf("invalid serviceMethod format: %v", serviceMethod)
	}
	serviceName := split[0]

	instances, err := c.registry.Discover(serviceName)
	if err != nil {
		return err
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return err
	}

	conn, t, err := c.getTransport(instance.Addr)
	if err != nil {
		return err
	}
	defer c.putTransport(instance.Addr, conn)

	ch, err := t.StreamCall(serviceMethod, args)
	if err != nil {
		return err
	}
	for msg := range ch {
		if msg.Error != "" {
			return fmt.Errorf("server error: %v", msg.Error)
		}
		if len(msg.Payload) == 0 {
			continue // terminal choke frame carries no payload
		}
		if err := onChunk(msg.Payload); err != nil {
			return err
		}
	}
	return nil
}
