package eventlog

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"
)

// TrimBefore deletes entries with ID strictly less than cutoff. Deletes are
// committed in batches of up to batchLimit keys with an optional throttle
// between commits. Returns the number of deleted entries.
//
// Trimming does not move any destination cursor; a cursor pointing at a
// trimmed entry stays valid because cursors only reference IDs that once
// existed.
func (l *Log) TrimBefore(ctx context.Context, cutoff EntryID, batchLimit int, throttle time.Duration) (int, error) {
	if batchLimit <= 0 {
		batchLimit = 1024
	}

	lo, hi := entryBounds()
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	deleted := 0
	for ok := iter.First(); ok; {
		b := l.db.NewBatch()
		n := 0
		for ok && n < batchLimit {
			id, valid := entryIDFromKey(iter.Key())
			if !valid || id.Compare(cutoff) >= 0 {
				ok = false
				break
			}
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return deleted, err
			}
			deleted++
			n++
			ok = iter.Next()
		}
		if n > 0 {
			if err := l.db.CommitBatch(ctx, b); err != nil {
				b.Close()
				return deleted, err
			}
			b.Close()
			if throttle > 0 {
				time.Sleep(throttle)
			}
		} else {
			b.Close()
		}
	}
	return deleted, nil
}
