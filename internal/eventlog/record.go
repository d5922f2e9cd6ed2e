package eventlog

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding: varint keyLen | dedupKey | payload | crc32c(dedupKey|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord serializes a dedup key and payload into a single value.
func EncodeRecord(dedupKey string, payload []byte) []byte {
	out := make([]byte, 0, 10+len(dedupKey)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(dedupKey)))
	out = append(out, tmp[:n]...)
	out = append(out, dedupKey...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, []byte(dedupKey))
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)
	return out
}

// DecodeRecord parses a record value; ok is false on truncation or checksum
// mismatch.
func DecodeRecord(b []byte) (dedupKey string, payload []byte, ok bool) {
	if len(b) < 1+4 {
		return "", nil, false
	}
	klen, n := binary.Uvarint(b)
	if n <= 0 {
		return "", nil, false
	}
	// uint64 arithmetic: a huge klen must not overflow into a passing bound
	if klen > uint64(len(b)) || uint64(n)+klen+4 > uint64(len(b)) {
		return "", nil, false
	}
	key := b[n : n+int(klen)]
	body := b[n+int(klen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, key)
	crc = crc32.Update(crc, castagnoli, body)
	if crc != expect {
		return "", nil, false
	}
	return string(key), append([]byte(nil), body...), true
}
