package deliveryqueue

import "encoding/binary"

// Keyspace:
//
//	dq/{destination}/m              queue metadata (last assigned seq)
//	dq/{destination}/e/{seq_be8}    queued message
const (
	queuePrefix = "dq/"
	metaSuffix  = "/m"
	entryInfix  = "/e/"
)

// KeyMeta returns the metadata key for a destination's queue.
func KeyMeta(destination string) []byte {
	return []byte(queuePrefix + destination + metaSuffix)
}

// KeyEntry returns the key for a queued message.
func KeyEntry(destination string, seq uint64) []byte {
	prefix := queuePrefix + destination + entryInfix
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// entryBounds returns the key range covering a destination's queued messages.
func entryBounds(destination string) (lo, hi []byte) {
	prefix := queuePrefix + destination + entryInfix
	lo = []byte(prefix)
	hi = make([]byte, len(prefix))
	copy(hi, prefix)
	hi[len(hi)-1]++
	return lo, hi
}

// allBounds returns the key range covering every queue's messages and metadata.
func allBounds() (lo, hi []byte) {
	lo = []byte(queuePrefix)
	hi = []byte(queuePrefix)
	hi[len(hi)-1]++
	return lo, hi
}

// seqFromKey extracts the sequence number from an entry key.
func seqFromKey(key []byte) (uint64, bool) {
	if len(key) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(key)-8:]), true
}
