// Package router implements the federated routing table (C2): the
// forward/inverted index pair over local and remote services, the
// table of weighted routing groups, and weighted service selection.
//
// All mutation goes through a single mutex, matching the spec's
// "router mutex" (§ 5) — index updates and selection draws are both
// short (O(group size) at worst), so a single coarse lock is
// sufficient and keeps the invariants between the three indices easy
// to reason about.
package router

import (
	"sync"

	"locator/catalog"
	"locator/group"

	"github.com/rs/zerolog"
)

// Router owns the forward index (service -> uuids), the inverted index
// (uuid -> {service -> descriptor}), the local catalog's set of owned
// names, and the table of routing groups.
type Router struct {
	mu sync.Mutex

	// forward[name] is the set of remote uuids currently offering name.
	forward map[string]map[string]struct{}
	// inverted[uuid][name] is the descriptor that uuid currently offers for name.
	inverted map[string]catalog.Snapshot
	// local is the set of service names attached on this node.
	local map[string]struct{}

	groups       map[string]*group.Index
	groupsByName map[string]map[string]struct{} // service name -> set of group names containing it

	log zerolog.Logger
}

// New constructs an empty router.
func New(log zerolog.Logger) *Router {
	return &Router{
		forward:      make(map[string]map[string]struct{}),
		inverted:     make(map[string]catalog.Snapshot),
		local:        make(map[string]struct{}),
		groups:       make(map[string]*group.Index),
		groupsByName: make(map[string]map[string]struct{}),
		log:          log.With().Str("component", "router").Logger(),
	}
}

// AddLocal records that name is now attached locally. Every group
// containing name is marked present.
func (r *Router) AddLocal(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.local[name] = struct{}{}
	r.touchGroups(name, true)
}

// RemoveLocal records that name is no longer attached locally. If the
// forward index still lists remote providers of name, every group
// containing it stays marked present; otherwise they are marked
// absent.
func (r *Router) RemoveLocal(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.local, name)
	if len(r.forward[name]) > 0 {
		return
	}
	r.touchGroups(name, false)
}

// UpdateRemote applies a peer's synchronize snapshot against the
// current record of what that peer offers, returning the set of
// (name, descriptor) pairs added/changed and the set of names removed.
// A descriptor change is reported as a removal followed by an
// addition under the same name.
func (r *Router) UpdateRemote(uuid string, snapshot catalog.Snapshot) (added, removed catalog.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	added = make(catalog.Snapshot)
	removed = make(catalog.Snapshot)

	current := r.inverted[uuid]

	for name, desc := range current {
		if newDesc, ok := snapshot[name]; !ok || !newDesc.Equal(desc) {
			removed[name] = desc
			r.remove(uuid, name)
		}
	}
	for name, desc := range snapshot {
		if oldDesc, ok := current[name]; !ok || !oldDesc.Equal(desc) {
			added[name] = desc
			r.add(uuid, name, desc)
		}
	}
	return added, removed
}

// RemoveRemote drops uuid from every index in one shot, returning what
// was removed.
func (r *Router) RemoveRemote(uuid string) catalog.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy first: remove() deletes from r.inverted[uuid] itself.
	removed := r.inverted[uuid].Clone()
	for name := range removed {
		r.remove(uuid, name)
	}
	delete(r.inverted, uuid)
	return removed
}

// Has reports whether name currently has a remote provider or a local
// owner. Kept for API completeness with the source this was ported
// from; Resolve deliberately does not call it (see DESIGN.md).
func (r *Router) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.local[name]; ok {
		return true
	}
	return len(r.forward[name]) > 0
}

// AddGroup replaces any existing group named name with a freshly built
// one from weights, seeding each member's presence from whichever of
// the local catalog or the remote forward index currently has it.
func (r *Router) AddGroup(name string, weights map[string]uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeGroupLocked(name)

	g := group.New(weights)
	r.groups[name] = g

	for _, svc := range g.Services() {
		if r.groupsByName[svc] == nil {
			r.groupsByName[svc] = make(map[string]struct{})
		}
		r.groupsByName[svc][name] = struct{}{}

		if _, local := r.local[svc]; local || len(r.forward[svc]) > 0 {
			g.MarkPresent(svc)
		}
	}
}

// RemoveGroup erases the group named name.
func (r *Router) RemoveGroup(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeGroupLocked(name)
}

func (r *Router) removeGroupLocked(name string) {
	g, ok := r.groups[name]
	if !ok {
		return
	}
	for _, svc := range g.Services() {
		if set := r.groupsByName[svc]; set != nil {
			delete(set, name)
			if len(set) == 0 {
				delete(r.groupsByName, svc)
			}
		}
	}
	delete(r.groups, name)
}

// SelectService resolves a name to a concrete service name. If name
// matches a routing group, it delegates to that group's weighted draw;
// on failure (empty group, or name is not a group at all) it falls
// back to returning name unchanged, since group names and service
// names share a flat namespace.
func (r *Router) SelectService(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	if !ok {
		return name
	}
	picked, err := g.Pick()
	if err != nil {
		return name
	}
	return picked
}

// add wires a (uuid, name, descriptor) triple into both indices and
// transitions used[i] on the first presence of name.
func (r *Router) add(uuid, name string, desc catalog.Descriptor) {
	if r.inverted[uuid] == nil {
		r.inverted[uuid] = make(catalog.Snapshot)
	}
	r.inverted[uuid][name] = desc

	if r.forward[name] == nil {
		r.forward[name] = make(map[string]struct{})
	}
	firstProvider := len(r.forward[name]) == 0
	r.forward[name][uuid] = struct{}{}

	if firstProvider {
		r.touchGroups(name, true)
	}
}

// remove unwires a (uuid, name) pair and transitions used[i] on the
// last absence of name.
func (r *Router) remove(uuid, name string) {
	delete(r.inverted[uuid], name)
	if len(r.inverted[uuid]) == 0 {
		delete(r.inverted, uuid)
	}

	if set, ok := r.forward[name]; ok {
		delete(set, uuid)
		if len(set) == 0 {
			delete(r.forward, name)
			if _, local := r.local[name]; !local {
				r.touchGroups(name, false)
			}
		}
	}
}

// touchGroups marks name present/absent in every group that contains
// it, via the group inverted index.
func (r *Router) touchGroups(name string, present bool) {
	for groupName := range r.groupsByName[name] {
		g := r.groups[groupName]
		if present {
			g.MarkPresent(name)
		} else {
			g.MarkAbsent(name)
		}
	}
}
