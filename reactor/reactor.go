// Package reactor provides a tiny single-threaded task queue. The
// locator's concurrency model (spec § 5, § 9) drives timers and
// message dispatch on one logical thread and requires a way to defer
// a callback to "the next turn" — most importantly, evicting a peer
// channel from inside that same channel's own message-arrival
// callback, whose argument borrows memory owned by the channel.
//
// Go has no direct analogue of a libev reactor loop; a buffered
// channel drained by a single goroutine is the idiomatic stand-in.
package reactor

// Reactor runs posted tasks, in order, on one dedicated goroutine.
type Reactor struct {
	tasks chan func()
	done  chan struct{}
}

// New starts a reactor with the given task queue depth.
func New(queueDepth int) *Reactor {
	r := &Reactor{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Reactor) run() {
	for {
		select {
		case task := <-r.tasks:
			task()
		case <-r.done:
			return
		}
	}
}

// Post enqueues fn to run on the reactor goroutine after whatever is
// currently executing returns. It never blocks the caller beyond
// filling the queue.
func (r *Reactor) Post(fn func()) {
	select {
	case r.tasks <- fn:
	case <-r.done:
	}
}

// Stop drains no further tasks and releases the reactor goroutine.
func (r *Reactor) Stop() {
	close(r.done)
}
