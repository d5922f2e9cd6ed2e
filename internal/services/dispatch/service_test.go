package dispatchsvc

import (
	"context"
	"errors"
	"sync"
	"testing"

	cfgpkg "github.com/jdertmann/herald/internal/config"
	"github.com/jdertmann/herald/internal/eventlog"
	"github.com/jdertmann/herald/internal/runtime"
	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
	logpkg "github.com/jdertmann/herald/pkg/log"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.MetricsEnabled = false
	rt, err := runtime.Open(runtime.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeAlways,
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return NewWithLogger(rt, logpkg.NewNopLogger())
}

func TestAdmitOnce(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ok, err := s.AdmitOnce(ctx, "doc#1")
	if err != nil || !ok {
		t.Fatalf("first admit: ok=%v err=%v", ok, err)
	}
	ok, err = s.AdmitOnce(ctx, "doc#1")
	if err != nil || ok {
		t.Fatalf("second admit: ok=%v err=%v", ok, err)
	}
}

func TestAdmitOnceRequiresKey(t *testing.T) {
	s := newTestService(t)
	if _, err := s.AdmitOnce(context.Background(), ""); !errors.Is(err, ErrDedupKeyRequired) {
		t.Fatalf("err = %v", err)
	}
}

func TestAdmitOnceConcurrentSingleWinner(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.AdmitOnce(ctx, "contested")
			if err != nil {
				t.Errorf("admit: %v", err)
				return
			}
			if ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)
	if got := len(wins); got != 1 {
		t.Fatalf("winners = %d, want 1", got)
	}
}

func TestAdmitOnceSharedRuntimeSingleWinner(t *testing.T) {
	s1 := newTestService(t)
	s2 := NewWithLogger(s1.rt, logpkg.NewNopLogger())
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan bool, 2*n)
	for i := 0; i < n; i++ {
		for _, s := range []*Service{s1, s2} {
			wg.Add(1)
			go func(s *Service) {
				defer wg.Done()
				ok, err := s.AdmitOnce(ctx, "contested")
				if err != nil {
					t.Errorf("admit: %v", err)
					return
				}
				if ok {
					wins <- true
				}
			}(s)
		}
	}
	wg.Wait()
	close(wins)
	if got := len(wins); got != 1 {
		t.Fatalf("winners across facades = %d, want 1", got)
	}
}

func TestPublishAppendsExactlyOnce(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, ok, err := s.Publish(ctx, "doc#1", []byte("payload"))
	if err != nil || !ok {
		t.Fatalf("publish: ok=%v err=%v", ok, err)
	}
	if id.IsZero() {
		t.Fatalf("zero id")
	}

	// retry with the same key leaves the log untouched
	_, ok, err = s.Publish(ctx, "doc#1", []byte("payload"))
	if err != nil || ok {
		t.Fatalf("duplicate publish: ok=%v err=%v", ok, err)
	}

	entries, err := s.ReadAfter(eventlog.Zero, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 1 || entries[0].DedupKey != "doc#1" {
		t.Fatalf("log entries: %+v", entries)
	}
}

func TestPublishAfterAdmitOnceIsDuplicate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if ok, _ := s.AdmitOnce(ctx, "doc#1"); !ok {
		t.Fatalf("admit")
	}
	_, ok, err := s.Publish(ctx, "doc#1", []byte("p"))
	if err != nil || ok {
		t.Fatalf("publish over admitted key: ok=%v err=%v", ok, err)
	}
	if entries, _ := s.ReadAfter(eventlog.Zero, 0); len(entries) != 0 {
		t.Fatalf("log not empty: %+v", entries)
	}
}

func TestFanOutPushesPerDestinationInOrder(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	dests := []string{"chat-1", "chat-2"}
	ok, err := s.FanOut(ctx, "doc#1", []byte("first"), dests)
	if err != nil || !ok {
		t.Fatalf("fanout: ok=%v err=%v", ok, err)
	}
	ok, err = s.FanOut(ctx, "doc#2", []byte("second"), dests)
	if err != nil || !ok {
		t.Fatalf("fanout 2: ok=%v err=%v", ok, err)
	}

	for _, dest := range dests {
		for _, want := range []string{"first", "second"} {
			msg, ok, err := s.rt.Queues().Pop(ctx, dest)
			if err != nil || !ok {
				t.Fatalf("pop %s: ok=%v err=%v", dest, ok, err)
			}
			if string(msg.Payload) != want {
				t.Fatalf("%s got %q, want %q", dest, msg.Payload, want)
			}
		}
	}
}

func TestFanOutDuplicateHasNoEffect(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if ok, _ := s.FanOut(ctx, "doc#1", []byte("p"), []string{"chat-1"}); !ok {
		t.Fatalf("first fanout")
	}
	ok, err := s.FanOut(ctx, "doc#1", []byte("p"), []string{"chat-1", "chat-2"})
	if err != nil || ok {
		t.Fatalf("duplicate fanout: ok=%v err=%v", ok, err)
	}
	if n, _ := s.rt.Queues().Len("chat-1"); n != 1 {
		t.Fatalf("chat-1 backlog = %d", n)
	}
	if n, _ := s.rt.Queues().Len("chat-2"); n != 0 {
		t.Fatalf("chat-2 backlog = %d", n)
	}
}

func TestFanOutSharesGateWithPublish(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if ok, _ := s.FanOut(ctx, "doc#1", []byte("p"), []string{"chat-1"}); !ok {
		t.Fatalf("fanout")
	}
	_, ok, err := s.Publish(ctx, "doc#1", []byte("p"))
	if err != nil || ok {
		t.Fatalf("publish after fanout: ok=%v err=%v", ok, err)
	}
}

func TestRegisterAcceptsOpaqueFilter(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	created, err := s.Register(ctx, "chat1", "filterA")
	if err != nil || !created {
		t.Fatalf("register: created=%v err=%v", created, err)
	}
	dest, found, err := s.rt.Registry().Get("chat1")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if dest.Filter != "filterA" {
		t.Fatalf("stored filter = %q", dest.Filter)
	}

	// re-register with a new opaque filter updates in place
	created, err = s.Register(ctx, "chat1", "filterB")
	if err != nil || created {
		t.Fatalf("re-register: created=%v err=%v", created, err)
	}
	dest, _, _ = s.rt.Registry().Get("chat1")
	if dest.Filter != "filterB" {
		t.Fatalf("updated filter = %q", dest.Filter)
	}
}

func TestRegisterAcknowledgeScenario(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	created, err := s.Register(ctx, "chat1", "")
	if err != nil || !created {
		t.Fatalf("register: created=%v err=%v", created, err)
	}
	dest, _, _ := s.rt.Registry().Get("chat1")
	if !dest.Cursor.IsZero() {
		t.Fatalf("fresh cursor = %v", dest.Cursor)
	}

	id, ok, err := s.Publish(ctx, "doc#1", []byte("payload"))
	if err != nil || !ok {
		t.Fatalf("publish: ok=%v err=%v", ok, err)
	}

	ok, err = s.Acknowledge(ctx, "chat1", id)
	if err != nil || !ok {
		t.Fatalf("ack: ok=%v err=%v", ok, err)
	}
	ok, err = s.Acknowledge(ctx, "chat1", id)
	if err != nil || ok {
		t.Fatalf("second ack: ok=%v err=%v", ok, err)
	}

	ok, err = s.Unacknowledge(ctx, "chat1", id)
	if err != nil || !ok {
		t.Fatalf("unack: ok=%v err=%v", ok, err)
	}
	dest, _, _ = s.rt.Registry().Get("chat1")
	if !dest.Cursor.IsZero() {
		t.Fatalf("cursor after unack = %v", dest.Cursor)
	}
}

func TestMigrateDelegation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, "chatA", "f"); err != nil {
		t.Fatalf("register: %v", err)
	}
	ok, err := s.Migrate(ctx, "chatA", "chatB")
	if err != nil || !ok {
		t.Fatalf("migrate: ok=%v err=%v", ok, err)
	}
	ids, err := s.Destinations()
	if err != nil || len(ids) != 1 || ids[0] != "chatB" {
		t.Fatalf("destinations = %v, %v", ids, err)
	}
}
