package admission

var admissionPrefix = []byte("adm/")

// KeyAdmission returns the storage key for a dedup key's admission record.
func KeyAdmission(key string) []byte {
	k := make([]byte, 0, len(admissionPrefix)+len(key))
	k = append(k, admissionPrefix...)
	k = append(k, key...)
	return k
}

// admissionBounds returns the key range covering all admission records. The
// upper bound is the prefix with its last byte incremented.
func admissionBounds() (lo, hi []byte) {
	lo = append([]byte(nil), admissionPrefix...)
	hi = append([]byte(nil), admissionPrefix...)
	hi[len(hi)-1]++
	return lo, hi
}
