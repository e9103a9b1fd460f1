package client

import (
	"context"
	"locator/codec"
	"locator/loadbalance"
	"locator/message"
	"locator/registry"
	"locator/server"
	"testing"
	"time"
)

// staticRegistry resolves every service name to a single fixed address,
// standing in for etcd in these transport-level tests.
type staticRegistry struct {
	addr string
}

func (s *staticRegistry) Register(string, registry.ServiceInstance, int64) error { return nil }
func (s *staticRegistry) Deregister(string, string) error                        { return nil }
func (s *staticRegistry) Discover(string) ([]registry.ServiceInstance, error) {
	return []registry.ServiceInstance{{Addr: s.addr, Weight: 1}}, nil
}
func (s *staticRegistry) Watch(string) <-chan []registry.ServiceInstance { return nil }

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

func TestClientCall(t *testing.T) {
	svr := server.NewServer()
	if err := svr.Register(&Arith{}); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", ":8889", "", nil)
	time.Sleep(100 * time.Millisecond)

	c := NewClient(&staticRegistry{addr: "127.0.0.1:8889"}, &loadbalance.RoundRobinBalancer{}, byte(codec.CodecTypeJSON), 2)

	reply := &Reply{}
	if err := c.Call("Arith.Add", &Args{A: 1, B: 2}, reply); err != nil {
		t.Fatal(err)
	}
	if reply.Result != 3 {
		t.Fatalf("expect 3, got %v", reply.Result)
	}

	reply2 := &Reply{}
	if err := c.Call("Arith.Add", &Args{A: 10, B: 20}, reply2); err != nil {
		t.Fatal(err)
	}
	if reply2.Result != 30 {
		t.Fatalf("expect 30, got %v", reply2.Result)
	}
}

func TestClientCallWithBinaryCodec(t *testing.T) {
	svr := server.NewServer()
	if err := svr.Register(&Arith{}); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", ":8890", "", nil)
	time.Sleep(100 * time.Millisecond)

	c := NewClient(&staticRegistry{addr: "127.0.0.1:8890"}, &loadbalance.RoundRobinBalancer{}, byte(codec.CodecTypeBinary), 2)

	reply := &Reply{}
	if err := c.Call("Arith.Add", &Args{A: 5, B: 7}, reply); err != nil {
		t.Fatal(err)
	}
	if reply.Result != 12 {
		t.Fatalf("expect 12, got %v", reply.Result)
	}
}

func TestClientStream(t *testing.T) {
	svr := server.NewServer()
	svr.RegisterStream("Locator.Echo", func(ctx context.Context, req *message.RPCMessage, send func(*message.RPCMessage) error) error {
		for i := 0; i < 3; i++ {
			if err := send(&message.RPCMessage{Payload: req.Payload}); err != nil {
				return err
			}
		}
		return nil
	})
	go svr.Serve("tcp", ":8891", "", nil)
	time.Sleep(100 * time.Millisecond)

	c := NewClient(&staticRegistry{addr: "127.0.0.1:8891"}, &loadbalance.RoundRobinBalancer{}, byte(codec.CodecTypeJSON), 2)

	count := 0
	err := c.Stream("Locator.Echo", &Args{A: 1, B: 2}, func(payload []byte) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expect 3 chunks, got %d", count)
	}
}
