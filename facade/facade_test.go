package facade

import (
	"errors"
	"testing"

	"locator/catalog"
	"locator/feed"
	"locator/gateway"
	"locator/router"
	"locator/store"

	"github.com/rs/zerolog"
)

type fakeActor struct {
	desc     catalog.Descriptor
	bound    string
	counters Report
}

func (a *fakeActor) Bind(endpoint string) error {
	a.bound = endpoint
	return nil
}

func (a *fakeActor) Metadata() catalog.Descriptor { return a.desc }

func (a *fakeActor) Counters() Report { return a.counters }

func newTestFacade() (*Facade, *router.Router) {
	r := router.New(zerolog.Nop())
	var fc *Facade
	f := feed.New(func() catalog.Snapshot {
		return fc.Dump()
	}, zerolog.Nop())
	fc = New(r, f, store.NewMemoryStore(), gateway.Null{}, 0, 0, zerolog.Nop())
	return fc, r
}

func TestLocalLifecycle(t *testing.T) {
	fc, _ := newTestFacade()

	actor := &fakeActor{desc: catalog.Descriptor{Version: 1}}
	if err := fc.Attach("storage", actor); err != nil {
		t.Fatal(err)
	}

	desc, err := fc.Resolve("storage")
	if err != nil {
		t.Fatal(err)
	}
	if desc.Version != 1 {
		t.Fatalf("expect attached descriptor, got %+v", desc)
	}

	if _, err := fc.Detach("storage"); err != nil {
		t.Fatal(err)
	}

	if _, err := fc.Resolve("storage"); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expect ErrServiceUnavailable after detach, got %v", err)
	}
}

func TestReports(t *testing.T) {
	fc, _ := newTestFacade()

	a1 := &fakeActor{counters: Report{Channels: 2, Endpoints: map[string]uint64{"10.0.0.1:9000": 128}}}
	a2 := &fakeActor{counters: Report{Channels: 0, Endpoints: map[string]uint64{}}}
	fc.Attach("s1", a1)
	fc.Attach("s2", a2)

	reports := fc.Reports()
	if len(reports) != 2 {
		t.Fatalf("expect one report per attached service, got %v", reports)
	}
	if got := reports["s1"]; got.Channels != 2 || got.Endpoints["10.0.0.1:9000"] != 128 {
		t.Fatalf("expect s1's own counters surfaced verbatim, got %+v", got)
	}
	if got := reports["s2"]; got.Channels != 0 {
		t.Fatalf("expect s2 idle, got %+v", got)
	}

	fc.Detach("s1")
	if _, ok := fc.Reports()["s1"]; ok {
		t.Fatalf("expect detached service absent from reports")
	}
}

func TestAttachNameConflict(t *testing.T) {
	fc, _ := newTestFacade()
	fc.Attach("storage", &fakeActor{})
	if err := fc.Attach("storage", &fakeActor{}); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expect ErrNameConflict, got %v", err)
	}
}

func TestPortPoolExhausted(t *testing.T) {
	r := router.New(zerolog.Nop())
	var fc *Facade
	f := feed.New(func() catalog.Snapshot { return fc.Dump() }, zerolog.Nop())
	fc = New(r, f, store.NewMemoryStore(), gateway.Null{}, 9000, 9001, zerolog.Nop())

	if err := fc.Attach("s1", &fakeActor{}); err != nil {
		t.Fatal(err)
	}
	if err := fc.Attach("s2", &fakeActor{}); !errors.Is(err, ErrPortsExhausted) {
		t.Fatalf("expect ErrPortsExhausted, got %v", err)
	}
}

func TestWeightedGroupResolution(t *testing.T) {
	fc, r := newTestFacade()
	r.AddGroup("storages", map[string]uint32{"s1": 1, "s2": 3})

	fc.Attach("s1", &fakeActor{desc: catalog.Descriptor{Version: 1}})

	for i := 0; i < 1000; i++ {
		if got := r.SelectService("storages"); got != "s1" {
			t.Fatalf("expect every draw to yield s1 while s2 is absent, got %q", got)
		}
	}

	fc.Attach("s2", &fakeActor{desc: catalog.Descriptor{Version: 1}})

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		counts[r.SelectService("storages")]++
	}
	ratio := float64(counts["s2"]) / float64(counts["s1"])
	if ratio < 2.0 || ratio > 4.5 {
		t.Fatalf("expect roughly 3:1 s2:s1 ratio, got s1=%d s2=%d", counts["s1"], counts["s2"])
	}
}

type recordingSubscriber struct {
	frames []catalog.Snapshot
}

func (r *recordingSubscriber) Send(snapshot catalog.Snapshot) error {
	r.frames = append(r.frames, snapshot)
	return nil
}

func TestSynchronizeDeliversInitialSnapshotThenMutations(t *testing.T) {
	fc, _ := newTestFacade()
	fc.Attach("s1", &fakeActor{desc: catalog.Descriptor{Version: 1}})

	sub := &recordingSubscriber{}
	if err := fc.Synchronize(sub); err != nil {
		t.Fatal(err)
	}
	if len(sub.frames) != 1 || len(sub.frames[0]) != 1 {
		t.Fatalf("expect one initial snapshot with one service, got %v", sub.frames)
	}

	fc.Attach("s2", &fakeActor{desc: catalog.Descriptor{Version: 1}})
	if len(sub.frames) != 2 || len(sub.frames[1]) != 2 {
		t.Fatalf("expect a second snapshot after attach, got %v", sub.frames)
	}

	fc.Shutdown()
	if len(sub.frames) != 3 || sub.frames[2] != nil {
		t.Fatalf("expect a terminal nil frame on shutdown, got %v", sub.frames)
	}
}

func TestRefreshFallsBackOnDeletedGroup(t *testing.T) {
	fc, r := newTestFacade()
	st := fc.store.(*store.MemoryStore)
	st.Write("storages", map[string]uint32{"s1": 1})

	if err := fc.Refresh("storages"); err != nil {
		t.Fatal(err)
	}
	if r.SelectService("storages") != "storages" {
		t.Fatalf("expect empty group to self-fallback before any member is present")
	}

	st.Delete("storages")
	if err := fc.Refresh("storages"); err != nil {
		t.Fatal(err)
	}
	if got := r.SelectService("storages"); got != "storages" {
		t.Fatalf("expect self-fallback after group deletion, got %q", got)
	}
}
