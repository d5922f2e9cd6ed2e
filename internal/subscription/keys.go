package subscription

// Keyspace:
//
//	dest/d/{id}    destination record (JSON)
//	dest/r/{id}    presence in the registered set
const (
	recordPrefix     = "dest/d/"
	registeredPrefix = "dest/r/"
)

// KeyRecord returns the storage key for a destination's record.
func KeyRecord(id string) []byte {
	return []byte(recordPrefix + id)
}

// KeyRegistered returns the registered-set key for a destination.
func KeyRegistered(id string) []byte {
	return []byte(registeredPrefix + id)
}

// registeredBounds returns the key range covering the registered set.
func registeredBounds() (lo, hi []byte) {
	lo = []byte(registeredPrefix)
	hi = []byte(registeredPrefix)
	hi[len(hi)-1]++
	return lo, hi
}

// idFromRegisteredKey extracts the destination id from a registered-set key.
func idFromRegisteredKey(key []byte) string {
	return string(key[len(registeredPrefix):])
}
