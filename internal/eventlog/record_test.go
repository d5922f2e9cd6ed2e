package eventlog

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	val := EncodeRecord("doc#1", []byte("payload"))
	key, payload, ok := DecodeRecord(val)
	if !ok {
		t.Fatalf("decode failed")
	}
	if key != "doc#1" || !bytes.Equal(payload, []byte("payload")) {
		t.Fatalf("mismatch: %q %q", key, payload)
	}
}

func TestRecordCorruptionDetected(t *testing.T) {
	val := EncodeRecord("k", []byte("body"))
	val[len(val)-1] ^= 0xFF
	if _, _, ok := DecodeRecord(val); ok {
		t.Fatalf("expected checksum failure")
	}
	if _, _, ok := DecodeRecord(val[:2]); ok {
		t.Fatalf("expected truncation failure")
	}
}

func TestRecordRejectsOversizedKeyLength(t *testing.T) {
	var buf [10]byte
	n := binary.PutUvarint(buf[:], 1<<63)
	val := append(buf[:n], make([]byte, 16)...)
	if _, _, ok := DecodeRecord(val); ok {
		t.Fatalf("expected reject of oversized key length")
	}
	// length larger than the value but small enough to wrap nothing
	n = binary.PutUvarint(buf[:], 1<<40)
	val = append(buf[:n], make([]byte, 16)...)
	if _, _, ok := DecodeRecord(val); ok {
		t.Fatalf("expected reject of out-of-range key length")
	}
}
