package gateway

import (
	"sync"

	"locator/catalog"
)

// Event is one Consume or Cleanup call observed by Recording.
type Event struct {
	Kind string // "consume" or "cleanup"
	UUID string
	Name string
	Desc catalog.Descriptor
}

// Recording is a Gateway fake that records every call in order, used
// by the peer registry tests to assert the consume/cleanup ordering
// the spec requires (see scenario 6: cleanup before consume on a
// descriptor change).
type Recording struct {
	mu     sync.Mutex
	Events []Event
	Descs  map[string]catalog.Descriptor // name -> descriptor to return from Resolve
}

func NewRecording() *Recording {
	return &Recording{Descs: make(map[string]catalog.Descriptor)}
}

func (r *Recording) Resolve(name string) (catalog.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc, ok := r.Descs[name]
	if !ok {
		return catalog.Descriptor{}, ErrServiceUnavailable
	}
	return desc, nil
}

func (r *Recording) Consume(uuid, name string, desc catalog.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Kind: "consume", UUID: uuid, Name: name, Desc: desc})
	r.Descs[name] = desc
}

func (r *Recording) Cleanup(uuid, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Kind: "cleanup", UUID: uuid, Name: name})
	delete(r.Descs, name)
}
