// Package facade implements the Locator Facade (C6): the single entry
// point that mediates between the external RPC surface and the
// router/feed/store/gateway collaborators.
package facade

import (
	"errors"
	"fmt"
	"sync"

	"locator/catalog"
	"locator/feed"
	"locator/gateway"
	"locator/router"
	"locator/store"

	"github.com/rs/zerolog"
)

// Actor is the spec's embedding actor abstraction: whatever wraps a
// single locally-attached service. The facade never does more with an
// Actor than bind it to an endpoint, ask for its metadata, and, on
// detach, hand it back to the caller.
type Actor interface {
	// Bind starts serving on endpoint (":0" when no port pool is
	// configured, letting the OS choose).
	Bind(endpoint string) error
	// Metadata returns the descriptor resolve() should hand back for
	// this service when it is resolved locally.
	Metadata() catalog.Descriptor
	// Counters returns the actor's own channel count and per-endpoint
	// byte footprint. reports() aggregates these rather than the
	// facade tracking traffic itself.
	Counters() Report
}

type localEntry struct {
	actor Actor
	port  uint16
}

// Facade owns the local catalog (ordered for deterministic reports)
// and its port pool, and mediates attach/detach/resolve/reports/refresh
// /synchronize against the router, feed, store, and gateway.
type Facade struct {
	mu     sync.Mutex // services_mutex
	order  []string
	byName map[string]*localEntry
	pool   *portPool // nil: no pool configured, Attach always uses port 0

	router  *router.Router
	feed    *feed.Feed
	store   store.Store
	gateway gateway.Gateway

	log zerolog.Logger
}

// New constructs a facade and loads every persisted routing group at
// start-up. A failure to even list the groups is treated as "start
// with an empty router" rather than fatal, matching the source's
// behavior of never leaving a partially-loaded group table around.
// Pass portMin == portMax == 0 for no port pool.
func New(r *router.Router, f *feed.Feed, st store.Store, gw gateway.Gateway, portMin, portMax uint16, log zerolog.Logger) *Facade {
	fc := &Facade{
		byName:  make(map[string]*localEntry),
		router:  r,
		feed:    f,
		store:   st,
		gateway: gw,
		log:     log.With().Str("component", "facade").Logger(),
	}
	if portMax > 0 {
		fc.pool = newPortPool(portMin, portMax)
	}

	names, err := st.Find()
	if err != nil {
		fc.log.Warn().Err(err).Msg("failed to list persisted groups at start-up, starting with an empty router")
		return fc
	}
	for _, name := range names {
		if err := fc.Refresh(name); err != nil {
			fc.log.Warn().Err(err).Str("group", name).Msg("failed to load persisted group at start-up")
		}
	}
	return fc
}

// Attach binds actor under name: allocates a port if a pool is
// configured, binds the actor, inserts it into the local catalog,
// marks it present in the router, and broadcasts the new snapshot.
func (f *Facade) Attach(name string, actor Actor) error {
	f.mu.Lock()
	if _, exists := f.byName[name]; exists {
		f.mu.Unlock()
		return fmt.Errorf("facade: attach %q: %w", name, ErrNameConflict)
	}

	var port uint16
	if f.pool != nil {
		p, err := f.pool.pop()
		if err != nil {
			f.mu.Unlock()
			return fmt.Errorf("facade: attach %q: %w", name, err)
		}
		port = p
	}

	if err := actor.Bind(fmt.Sprintf(":%d", port)); err != nil {
		if f.pool != nil {
			f.pool.push(port)
		}
		f.mu.Unlock()
		return err
	}

	f.order = append(f.order, name)
	f.byName[name] = &localEntry{actor: actor, port: port}
	f.mu.Unlock()

	f.router.AddLocal(name)
	f.feed.Broadcast()
	return nil
}

// Detach removes name from the local catalog and returns its actor for
// the caller to dispose of.
func (f *Facade) Detach(name string) (Actor, error) {
	f.mu.Lock()
	entry, ok := f.byName[name]
	if !ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("facade: detach %q: %w", name, ErrNotAttached)
	}
	delete(f.byName, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	if f.pool != nil {
		f.pool.push(entry.port)
	}
	f.mu.Unlock()

	f.router.RemoveLocal(name)
	f.feed.Broadcast()

	return entry.actor, nil
}

// Resolve picks a concrete service name via the router and serves its
// descriptor locally if attached here, or via the gateway otherwise.
func (f *Facade) Resolve(name string) (catalog.Descriptor, error) {
	target := f.router.SelectService(name)

	f.mu.Lock()
	entry, isLocal := f.byName[target]
	f.mu.Unlock()
	if isLocal {
		return entry.actor.Metadata(), nil
	}

	desc, err := f.gateway.Resolve(target)
	if err != nil {
		// A gateway that is simply absent (gateway.Null) reports its own
		// unavailability sentinel, which is synthesized into the facade's
		// equivalent; any other error is a real gateway's own failure and
		// propagates verbatim, per locator_t::resolve only throwing its
		// own error when m_gateway is null.
		if errors.Is(err, gateway.ErrServiceUnavailable) {
			return catalog.Descriptor{}, fmt.Errorf("facade: resolve %q: %w", name, ErrServiceUnavailable)
		}
		return catalog.Descriptor{}, fmt.Errorf("facade: resolve %q: %w", name, err)
	}
	return desc, nil
}

// Reports snapshots per-service channel counts and byte footprints,
// pulled from each attached actor's own counters.
func (f *Facade) Reports() map[string]Report {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]Report, len(f.order))
	for _, name := range f.order {
		out[name] = f.byName[name].actor.Counters()
	}
	return out
}

// Refresh reloads a routing group from the persistent store. A
// not-found read is interpreted as the group having been deleted, per
// spec § 7; any other storage error propagates.
func (f *Facade) Refresh(name string) error {
	weights, err := f.store.Read(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			f.router.RemoveGroup(name)
			return nil
		}
		return err
	}
	f.router.AddGroup(name, weights)
	return nil
}

// Synchronize registers sub with the synchronization feed.
func (f *Facade) Synchronize(sub feed.Subscriber) error {
	return f.feed.Subscribe(sub)
}

// Shutdown severs the feed's subscribers. Callers own the announce
// engine, peer registry, and reactor lifetimes and must stop those
// themselves, in the order spec § 5 requires: feed before anything that
// might still try to reach a subscriber.
func (f *Facade) Shutdown() {
	f.feed.Shutdown()
}

// Dump renders the current local catalog as a snapshot, used as the
// feed's dump function so C5 never needs direct access to the facade's
// internals.
func (f *Facade) Dump() catalog.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(catalog.Snapshot, len(f.order))
	for _, name := range f.order {
		out[name] = f.byName[name].actor.Metadata()
	}
	return out
}
