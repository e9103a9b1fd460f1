package test

import (
	"locator/client"
	"locator/codec"
	"locator/loadbalance"
	"locator/middleware"
	"locator/registry"
	"locator/server"
	"testing"
	"time"
)

// Requires a local etcd at 127.0.0.1:2379; these tests do not skip when it is
// absent. They exercise the full wiring:
// Client -> Registry(etcd) -> Balancer -> ConnPool -> Protocol -> Codec -> Middleware -> Server -> reflected call.

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

func (a *Arith) Multiply(args *Args, reply *Reply) error {
	reply.Result = args.A * args.B
	return nil
}

func TestFullIntegrationWithEtcd(t *testing.T) {
	reg, err := registry.NewEtcdRegistry([]string{"127.0.0.1:2379"})
	if err != nil {
		t.Fatalf("failed to connect etcd: %v", err)
	}

	svr := server.NewServer()
	svr.Use(middleware.LoggingMiddleware())
	if err := svr.Register(&Arith{}); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", ":19090", "127.0.0.1:19090", nil)
	time.Sleep(100 * time.Millisecond)

	if err := reg.Register("Arith", registry.ServiceInstance{
		Addr:   "127.0.0.1:19090",
		Weight: 10,
	}, 10); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	bal := &loadbalance.RoundRobinBalancer{}
	cli := client.NewClient(reg, bal, byte(codec.CodecTypeJSON), 2)

	reply := &Reply{}
	if err := cli.Call("Arith.Add", &Args{A: 3, B: 5}, reply); err != nil {
		t.Fatalf("Call Add failed: %v", err)
	}
	if reply.Result != 8 {
		t.Fatalf("Add: expect 8, got %d", reply.Result)
	}

	reply2 := &Reply{}
	if err := cli.Call("Arith.Multiply", &Args{A: 4, B: 6}, reply2); err != nil {
		t.Fatalf("Call Multiply failed: %v", err)
	}
	if reply2.Result != 24 {
		t.Fatalf("Multiply: expect 24, got %d", reply2.Result)
	}

	reg.Deregister("Arith", "127.0.0.1:19090")
	svr.Shutdown(3 * time.Second)
}

func TestMultiServerWithEtcd(t *testing.T) {
	reg, err := registry.NewEtcdRegistry([]string{"127.0.0.1:2379"})
	if err != nil {
		t.Fatalf("failed to connect etcd: %v", err)
	}
	reg.Deregister("Arith", "127.0.0.1:19091")
	reg.Deregister("Arith", "127.0.0.1:19092")

	svr1 := server.NewServer()
	svr1.Register(&Arith{})
	go svr1.Serve("tcp", ":19091", "127.0.0.1:19091", nil)

	svr2 := server.NewServer()
	svr2.Register(&Arith{})
	go svr2.Serve("tcp", ":19092", "127.0.0.1:19092", nil)

	time.Sleep(100 * time.Millisecond)

	reg.Register("Arith", registry.ServiceInstance{Addr: "127.0.0.1:19091", Weight: 10}, 10)
	reg.Register("Arith", registry.ServiceInstance{Addr: "127.0.0.1:19092", Weight: 10}, 10)

	bal := &loadbalance.RoundRobinBalancer{}
	cli := client.NewClient(reg, bal, byte(codec.CodecTypeJSON), 2)

	for i := 1; i <= 10; i++ {
		reply := &Reply{}
		if err := cli.Call("Arith.Add", &Args{A: i, B: i * 10}, reply); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		expected := i + i*10
		if reply.Result != expected {
			t.Fatalf("request %d: expect %d, got %d", i, expected, reply.Result)
		}
	}

	svr1.Shutdown(3 * time.Second)
	svr2.Shutdown(3 * time.Second)
}
