package eventlog

import (
	"bytes"
	"context"
	"testing"

	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	l, err := Open(db)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return l
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()
	a, err := l.Append(ctx, "doc#1", []byte("p1"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	b, err := l.Append(ctx, "doc#2", []byte("p2"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !a.Less(b) {
		t.Fatalf("expected increasing ids: %v then %v", a, b)
	}
	if got := l.Tail(); got != b {
		t.Fatalf("tail = %v, want %v", got, b)
	}
}

func TestTailEmptyLogIsZero(t *testing.T) {
	l := newTestLog(t)
	if got := l.Tail(); !got.IsZero() {
		t.Fatalf("tail of empty log = %v, want zero", got)
	}
}

func TestAppendDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	l, err := Open(db)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	ctx := context.Background()
	first, err := l.Append(ctx, "doc#1", []byte("x"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// reopen and ensure the last ID is restored via meta
	db2, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen pebble: %v", err)
	}
	t.Cleanup(func() { _ = db2.Close() })
	l2, err := Open(db2)
	if err != nil {
		t.Fatalf("open log2: %v", err)
	}
	if got := l2.Tail(); got != first {
		t.Fatalf("tail after reopen = %v, want %v", got, first)
	}
	next, err := l2.Append(ctx, "doc#2", []byte("y"))
	if err != nil {
		t.Fatalf("append2: %v", err)
	}
	if !first.Less(next) {
		t.Fatalf("expected next id > previous: prev=%v next=%v", first, next)
	}
}

func TestGetExistingAndMissing(t *testing.T) {
	l := newTestLog(t)
	id, err := l.Append(context.Background(), "doc#1", []byte("body"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	e, ok, err := l.Get(id)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if e.DedupKey != "doc#1" || !bytes.Equal(e.Payload, []byte("body")) {
		t.Fatalf("entry mismatch: %+v", e)
	}
	if _, ok, err := l.Get(EntryID{Epoch: 999999, Seq: 1}); err != nil || ok {
		t.Fatalf("missing entry: ok=%v err=%v", ok, err)
	}
}
