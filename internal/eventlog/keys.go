package eventlog

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - log/m                       (log metadata: last assigned EntryID)
// - log/e/{epoch_be8}{seq_be8}  (entries)

var (
	metaKey     = []byte("log/m")
	entryPrefix = []byte("log/e/")
)

// KeyLogMeta returns the log metadata key.
func KeyLogMeta() []byte { return metaKey }

// KeyEntry builds the entry key with a big-endian ID for proper ordering.
func KeyEntry(id EntryID) []byte {
	k := make([]byte, 0, len(entryPrefix)+16)
	k = append(k, entryPrefix...)
	enc := id.Encode()
	k = append(k, enc[:]...)
	return k
}

// entryBounds returns the [low, high) iterator bounds covering all entries.
func entryBounds() (lo, hi []byte) {
	lo = KeyEntry(Zero)
	hi = KeyEntry(EntryID{Epoch: ^uint64(0), Seq: ^uint64(0)})
	hi = append(hi, 0x00)
	return lo, hi
}

// entryIDFromKey recovers the EntryID from an entry key.
func entryIDFromKey(k []byte) (EntryID, bool) {
	if len(k) != len(entryPrefix)+16 {
		return EntryID{}, false
	}
	id, err := DecodeEntryID(k[len(entryPrefix):])
	if err != nil {
		return EntryID{}, false
	}
	return id, true
}
