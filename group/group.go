// Package group implements the weighted routing-group structure used
// by the router (C1 in the design): a static {service -> weight}
// multiset that tracks which of its members are currently resolvable,
// and draws one member at random in proportion to its weight.
//
// Mutations (MarkPresent/MarkAbsent) are expected to dominate draws in
// a steady-state cluster, so Pick uses a linear scan over the used
// weight vector rather than a prefix-sum tree — group sizes are small
// (tens of services), which makes the O(n) scan cheap and the code
// simple.
package group

import (
	"errors"
	"sort"
	"time"

	"golang.org/x/exp/rand"
)

// ErrEmptyGroup is returned by Pick when every member's used weight is
// zero — none of the group's services currently has a local or remote
// provider.
var ErrEmptyGroup = errors.New("group: no service currently available")

// Index is the weighted multiset for one routing group. Three parallel
// vectors of equal length track each service's name, its declared
// weight, and its "used" weight (equal to the declared weight while the
// service is resolvable, zero otherwise).
type Index struct {
	services []string
	declared []uint32
	used     []uint32
	index    map[string]int // service name -> position in the vectors above
	sum      uint64

	rng *rand.Rand
}

// New builds a group index from a {service -> weight} map. Every
// weight must be strictly positive; a non-positive weight is silently
// floored to 1 so a misconfigured group never becomes permanently
// unelectable. Members are laid out in sorted name order, so two
// indexes built from the same map draw identically under the same seed.
func New(weights map[string]uint32) *Index {
	g := &Index{
		services: make([]string, 0, len(weights)),
		declared: make([]uint32, 0, len(weights)),
		used:     make([]uint32, 0, len(weights)),
		index:    make(map[string]int, len(weights)),
		rng:      rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w := weights[name]
		if w == 0 {
			w = 1
		}
		g.index[name] = len(g.services)
		g.services = append(g.services, name)
		g.declared = append(g.declared, w)
		g.used = append(g.used, 0)
	}
	return g
}

// SeedFrom replaces the index's RNG source, letting callers (tests, or
// a facade wanting reproducible routing for a given run) pin the draw
// sequence explicitly.
func (g *Index) SeedFrom(seed uint64) {
	g.rng = rand.New(rand.NewSource(seed))
}

// Services returns the group's declared members in insertion order.
func (g *Index) Services() []string {
	out := make([]string, len(g.services))
	copy(out, g.services)
	return out
}

// Sum returns the current total of used weights.
func (g *Index) Sum() uint64 {
	return g.sum
}

// UsedWeight returns the used weight of name, or 0 if name is not a
// member of this group.
func (g *Index) UsedWeight(name string) uint32 {
	i, ok := g.index[name]
	if !ok {
		return 0
	}
	return g.used[i]
}

// MarkPresent marks name as currently resolvable: its used weight
// becomes its declared weight. A no-op if name is not a member of this
// group.
func (g *Index) MarkPresent(name string) {
	i, ok := g.index[name]
	if !ok || g.used[i] == g.declared[i] {
		return
	}
	g.sum += uint64(g.declared[i])
	g.used[i] = g.declared[i]
}

// MarkAbsent marks name as currently unresolvable: its used weight
// becomes 0. A no-op if name is not a member of this group.
func (g *Index) MarkAbsent(name string) {
	i, ok := g.index[name]
	if !ok || g.used[i] == 0 {
		return
	}
	g.sum -= uint64(g.used[i])
	g.used[i] = 0
}

// Pick draws one service name in proportion to its used weight. It
// fails with ErrEmptyGroup when every member's used weight is zero.
// Given the same RNG state and an unchanged used-weight vector, the
// result is deterministic.
func (g *Index) Pick() (string, error) {
	if g.sum == 0 {
		return "", ErrEmptyGroup
	}
	r := uint64(g.rng.Int63n(int64(g.sum)))
	var acc uint64
	for i, name := range g.services {
		acc += uint64(g.used[i])
		if r < acc {
			return name, nil
		}
	}
	// Unreachable if sum is maintained correctly, but guards against a
	// drifted sum rather than panicking mid-selection.
	return "", ErrEmptyGroup
}
