package deliveryqueue

import (
	"encoding/binary"
	"hash/crc32"
)

// Queued message record: payload | crc32c(payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord frames payload with a trailing checksum.
func EncodeRecord(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, payload...)
	crc := crc32.Checksum(payload, castagnoli)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc)
	return append(out, cb[:]...)
}

// DecodeRecord verifies the checksum and returns the payload.
func DecodeRecord(b []byte) ([]byte, bool) {
	if len(b) < 4 {
		return nil, false
	}
	payload := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(payload, castagnoli) != expect {
		return nil, false
	}
	return append([]byte(nil), payload...), true
}
