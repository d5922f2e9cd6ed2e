package eventlog

import (
	"github.com/cockroachdb/pebble"
)

// Entry is a decoded log entry.
type Entry struct {
	ID       EntryID
	DedupKey string
	Payload  []byte
}

// ReadAfter returns up to limit entries with ID strictly greater than after,
// in ascending ID order. A limit of 0 means no limit. Corrupt records are
// skipped.
func (l *Log) ReadAfter(after EntryID, limit int) ([]Entry, error) {
	lo, hi := entryBounds()
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Entry
	for ok := iter.SeekGE(KeyEntry(after)); ok; ok = iter.Next() {
		id, valid := entryIDFromKey(iter.Key())
		if !valid || id.Compare(after) <= 0 {
			continue
		}
		key, payload, okDec := DecodeRecord(iter.Value())
		if okDec {
			out = append(out, Entry{ID: id, DedupKey: key, Payload: payload})
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// EntryBefore returns the ID immediately preceding id in the log, or Zero
// when no earlier entry exists. id itself does not have to exist.
func (l *Log) EntryBefore(id EntryID) (EntryID, error) {
	lo, hi := entryBounds()
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return EntryID{}, err
	}
	defer iter.Close()

	if !iter.SeekLT(KeyEntry(id)) {
		return Zero, nil
	}
	prev, valid := entryIDFromKey(iter.Key())
	if !valid {
		return Zero, nil
	}
	return prev, nil
}

// Get returns the entry with the given ID, if it exists.
func (l *Log) Get(id EntryID) (Entry, bool, error) {
	val, err := l.db.Get(KeyEntry(id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	key, payload, ok := DecodeRecord(val)
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{ID: id, DedupKey: key, Payload: payload}, true, nil
}
