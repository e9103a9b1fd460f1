package main

import (
	"locator/catalog"
	"locator/facade"
)

// Locator exposes the facade's unary operations over reflection-based
// RPC dispatch. Its Synchronize method rides the same "Locator." prefix
// as a streaming call registered separately via RegisterStream.
type Locator struct {
	fc *facade.Facade
}

type ResolveArgs struct {
	Name string
}

type ResolveReply struct {
	Descriptor catalog.Descriptor
}

// Resolve picks a concrete service behind name and returns its
// descriptor, whether attached locally or served through the gateway.
func (l *Locator) Resolve(args *ResolveArgs, reply *ResolveReply) error {
	desc, err := l.fc.Resolve(args.Name)
	if err != nil {
		return err
	}
	reply.Descriptor = desc
	return nil
}

type ReportsArgs struct{}

type ReportsReply struct {
	Reports map[string]facade.Report
}

// Reports returns the per-service channel count and byte footprint for
// every locally attached service.
func (l *Locator) Reports(_ *ReportsArgs, reply *ReportsReply) error {
	reply.Reports = l.fc.Reports()
	return nil
}

type RefreshArgs struct {
	Name string
}

type RefreshReply struct{}

// Refresh reloads a routing group from the persistent store.
func (l *Locator) Refresh(args *RefreshArgs, _ *RefreshReply) error {
	return l.fc.Refresh(args.Name)
}
