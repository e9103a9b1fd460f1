// Package catalog defines the data model shared by the router, the
// synchronization feed, and the peer registry: the opaque service
// descriptor, the peer identity tuple, and the snapshot exchanged over
// the synchronize protocol.
package catalog

// Descriptor is a service's public metadata as published by its actor:
// the endpoints a caller should dial, the protocol version it speaks,
// and its method dictionary. The router never introspects a
// Descriptor's fields; it only compares whole values for equality and
// serializes them opaquely.
type Descriptor struct {
	Endpoints []string `json:"endpoints"`
	Version   uint32   `json:"version"`
	Methods   []string `json:"methods,omitempty"`
}

// Equal reports whether two descriptors carry the same metadata. Used
// by Router.UpdateRemote to detect a republish under an unchanged name.
func (d Descriptor) Equal(other Descriptor) bool {
	if d.Version != other.Version {
		return false
	}
	if len(d.Endpoints) != len(other.Endpoints) || len(d.Methods) != len(other.Methods) {
		return false
	}
	for i := range d.Endpoints {
		if d.Endpoints[i] != other.Endpoints[i] {
			return false
		}
	}
	for i := range d.Methods {
		if d.Methods[i] != other.Methods[i] {
			return false
		}
	}
	return true
}

// PeerKey is the immutable triple identifying a remote node. UUID alone
// identifies the peer for routing purposes; Hostname+Port is the
// address used to open the RPC channel to it.
type PeerKey struct {
	UUID     string `json:"uuid"`
	Hostname string `json:"hostname"`
	Port     uint16 `json:"port"`
}

// Snapshot is the full {name -> descriptor} map of a node's
// locally-attached services, exchanged over the synchronize stream.
type Snapshot map[string]Descriptor

// Clone returns a shallow copy of the snapshot, safe to hand to a
// subscriber that will not mutate the descriptors themselves.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for name, d := range s {
		out[name] = d
	}
	return out
}
