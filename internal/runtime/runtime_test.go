package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/jdertmann/herald/internal/config"
	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
)

func TestOpenCloseHealth(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestComponentsShareOneStore(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	id, err := rt.Log().Append(ctx, "doc#1", []byte("payload"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	created, err := rt.Registry().Register(ctx, "chat-1", "")
	if err != nil || !created {
		t.Fatalf("register: created=%v err=%v", created, err)
	}
	dest, found, err := rt.Registry().Get("chat-1")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if dest.Cursor != id {
		t.Fatalf("registration tail = %v, want %v", dest.Cursor, id)
	}
	if _, err := rt.Queues().Push(ctx, "chat-1", []byte("direct")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if ok, err := rt.Gate().Admitted("doc#1"); err != nil || ok {
		t.Fatalf("gate admitted=%v err=%v (log append does not admit)", ok, err)
	}
}
