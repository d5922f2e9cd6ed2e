package eventlog

import (
	"bytes"
	"testing"
)

func TestKeyEntryRoundTrip(t *testing.T) {
	id := EntryID{Epoch: 123, Seq: 456}
	k := KeyEntry(id)
	if !bytes.HasPrefix(k, []byte("log/e/")) {
		t.Fatalf("unexpected prefix: %q", k)
	}
	got, ok := entryIDFromKey(k)
	if !ok || got != id {
		t.Fatalf("round trip: ok=%v got=%v", ok, got)
	}
	if _, ok := entryIDFromKey(k[:len(k)-1]); ok {
		t.Fatalf("short key accepted")
	}
}

func TestEntryBoundsCoverKeys(t *testing.T) {
	lo, hi := entryBounds()
	k := KeyEntry(EntryID{Epoch: ^uint64(0), Seq: ^uint64(0)})
	if string(k) < string(lo) || string(k) >= string(hi) {
		t.Fatalf("max key outside bounds")
	}
}
