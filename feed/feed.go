// Package feed implements the push-based synchronization feed (C5): a
// list of subscribers that receive a full local-catalog snapshot on
// subscribe and on every subsequent local mutation, terminated by one
// closing frame at shutdown.
//
// The feed always transmits full snapshots rather than deltas: the
// receiving side computes the diff itself via router.Router.UpdateRemote.
// This trades bandwidth for a subscriber side that carries no state
// beyond "what did I see last."
package feed

import (
	"sync"

	"locator/catalog"

	"github.com/rs/zerolog"
)

// Subscriber is anything that can receive a snapshot frame and later be
// told the feed has shut down. Send is called synchronously under the
// feed's lock, so a slow subscriber delays the whole broadcast; only a
// subscriber whose Send returns an error is dropped.
type Subscriber interface {
	// Send delivers a snapshot. snapshot == nil marks the terminal frame.
	Send(snapshot catalog.Snapshot) error
}

// Feed owns the subscriber list and serializes every broadcast under
// its own mutex, matching the spec's single-writer discipline for C5.
type Feed struct {
	mu          sync.Mutex
	subscribers []Subscriber
	dump        func() catalog.Snapshot
	closed      bool
	log         zerolog.Logger
}

// New builds a feed that renders snapshots via dump — normally
// facade.Facade.Dump, the local catalog, injected rather than imported
// directly so the feed has no dependency on the facade's internals
// beyond what it needs to broadcast.
func New(dump func() catalog.Snapshot, log zerolog.Logger) *Feed {
	return &Feed{
		dump: dump,
		log:  log.With().Str("component", "feed").Logger(),
	}
}

// Subscribe sends sub the current snapshot and appends it to the
// subscriber list. Rejected once the feed has shut down.
func (f *Feed) Subscribe(sub Subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFeedClosed
	}
	if err := sub.Send(f.dump()); err != nil {
		return err
	}
	f.subscribers = append(f.subscribers, sub)
	return nil
}

// Broadcast renders the current snapshot once and hands that same value
// to every subscriber. Encoding is left to each subscriber (ConnSubscriber
// marshals it on every Send), so the wire bytes are produced once per
// subscriber, not shared. A subscriber whose Send fails is dropped.
// Called after every attach/detach, with services_mutex already
// released, so the snapshot reflects exactly the state the facade
// observed.
func (f *Feed) Broadcast() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || len(f.subscribers) == 0 {
		return
	}

	snapshot := f.dump()
	alive := f.subscribers[:0]
	for _, sub := range f.subscribers {
		if err := sub.Send(snapshot); err != nil {
			f.log.Debug().Err(err).Msg("dropping unresponsive subscriber")
			continue
		}
		alive = append(alive, sub)
	}
	f.subscribers = alive
}

// Shutdown sends a terminal frame to every subscriber, clears the
// list, and rejects all future Subscribe calls.
func (f *Feed) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	for _, sub := range f.subscribers {
		_ = sub.Send(nil)
	}
	f.subscribers = nil
	f.closed = true
}
