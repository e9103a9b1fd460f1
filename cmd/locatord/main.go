// Command locatord runs one locator node: the facade, its router and
// synchronization feed, the peer registry and announce engine, and the
// RPC server that exposes them.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"locator/announce"
	"locator/catalog"
	"locator/codec"
	"locator/config"
	"locator/facade"
	"locator/feed"
	"locator/gateway"
	"locator/message"
	"locator/middleware"
	"locator/peer"
	"locator/reactor"
	"locator/registry"
	"locator/router"
	"locator/server"
	"locator/store"
	"locator/transport"

	"github.com/rs/zerolog"
)

func newLogger() zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Str("service", "locatord").Logger()
}

func main() {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var persist store.Store
	if len(cfg.EtcdEndpoints) > 0 {
		persist, err = store.NewEtcdStore(cfg.EtcdEndpoints)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to etcd store")
		}
	} else {
		persist = store.NewMemoryStore()
	}

	var gw gateway.Gateway = gateway.Null{}
	if cfg.GatewayType != "" {
		log.Warn().Str("gateway", cfg.GatewayType).Msg("no concrete gateway wired for this type, falling back to Null")
	}
	// spec § 4.4/§ 6: federation (C3/C4) is active only on a node with a
	// configured gateway. A multicast group with no gateway stays inert.
	federationActive := cfg.MulticastGroup != "" && cfg.GatewayType != ""

	rtr := router.New(log)
	react := reactor.New(64)

	var fc *facade.Facade
	fd := feed.New(func() catalog.Snapshot { return fc.Dump() }, log)
	fc = facade.New(rtr, fd, persist, gw, cfg.PortPoolMin, cfg.PortPoolMax, log)

	dialer := func(addr string) (peer.Channel, error) {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		return peer.WrapTransport(transport.NewClientTransport(conn, codec.CodecTypeJSON)), nil
	}
	peers := peer.New(rtr, gw, react, dialer, log)

	svr := server.NewServer()
	svr.Use(middleware.LoggingMiddleware())
	svr.Use(middleware.RateLimitMiddleware(200, 50))
	svr.Use(middleware.RetryMiddleware(2, 50*time.Millisecond))
	svr.Use(middleware.TimeOutMiddleware(5 * time.Second))

	svr.Register(&Locator{fc: fc})
	svr.RegisterStream("Locator.Synchronize", func(_ context.Context, _ *message.RPCMessage, send func(*message.RPCMessage) error) error {
		sub := feed.NewConnSubscriber(send)
		if err := fc.Synchronize(sub); err != nil {
			return err
		}
		<-sub.Done()
		return nil
	})

	var reg registry.Registry
	if len(cfg.EtcdEndpoints) > 0 {
		reg, err = registry.NewEtcdRegistry(cfg.EtcdEndpoints)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to etcd registry")
		}
	}

	listenAddr := fmt.Sprintf(":%d", cfg.LocatorPort)
	advertiseAddr := fmt.Sprintf("%s:%d", cfg.Hostname, cfg.LocatorPort)

	var announcer *announce.Engine
	if federationActive {
		self := catalog.PeerKey{UUID: cfg.UUID, Hostname: cfg.Hostname, Port: cfg.LocatorPort}
		announcer, err = announce.New(self, cfg.MulticastGroup, nil, peers.Announce, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start announce engine")
		}

		tick := make(chan struct{})
		ticker := time.NewTicker(announce.Interval * time.Second)
		go func() {
			for range ticker.C {
				tick <- struct{}{}
			}
		}()
		announcer.Start(tick)
		log.Info().Str("group", cfg.MulticastGroup).Msg("federation active: announce engine started")
	} else if cfg.MulticastGroup != "" {
		log.Warn().Msg("multicast group configured but no gateway: federation (C3/C4) stays inactive")
	} else {
		log.Info().Msg("no gateway configured: federation (peer registry/announce) is inactive")
	}

	go func() {
		log.Info().Str("addr", listenAddr).Msg("locator listening")
		if err := svr.Serve("tcp", listenAddr, advertiseAddr, reg); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Int("peers", peers.Count()).Msg("shutting down")

	// teardown order: the feed's subscribers first, then the announce
	// engine's sockets, then the reactor, then the RPC listener.
	fc.Shutdown()
	if announcer != nil {
		announcer.Stop()
	}
	react.Stop()
	if err := svr.Shutdown(5 * time.Second); err != nil {
		log.Warn().Err(err).Msg("server shutdown did not complete cleanly")
	}
}
