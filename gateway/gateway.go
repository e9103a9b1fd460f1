// Package gateway defines the spec's cross-node call-forwarding
// collaborator. The routing/federation core treats it purely as an
// interface — it never inspects a descriptor or dials anything itself.
package gateway

import "locator/catalog"

// Gateway resolves a service name to a descriptor on behalf of the
// facade, and is kept informed of the router's remote-catalog diffs so
// it can maintain whatever cross-node call-forwarding state it needs.
type Gateway interface {
	// Resolve returns the descriptor to hand back to an RPC caller for
	// a service name the router could not satisfy locally.
	Resolve(name string) (catalog.Descriptor, error)
	// Consume is called once per (uuid, name, descriptor) addition
	// reported by router.Router.UpdateRemote.
	Consume(uuid, name string, desc catalog.Descriptor)
	// Cleanup is called once per (uuid, name) removal reported by
	// router.Router.UpdateRemote or RemoveRemote.
	Cleanup(uuid, name string)
}

// Null is a Gateway that forwards nothing, used when no gateway is
// configured. Per spec § 6, a node without a gateway runs with
// federation (C3/C4) inactive; Null exists so the facade still has a
// gateway value to call without special-casing the absent case.
type Null struct{}

func (Null) Resolve(name string) (catalog.Descriptor, error) {
	return catalog.Descriptor{}, ErrServiceUnavailable
}

func (Null) Consume(uuid, name string, desc catalog.Descriptor) {}

func (Null) Cleanup(uuid, name string) {}
