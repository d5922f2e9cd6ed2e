// Package admission implements the at-most-once gate that decides whether a
// submission with a given dedup key may enter the delivery log.
//
// A test-and-stage sequence (Admitted followed by StageAdmit on the same
// batch) is only atomic under the gate's own lock; callers hold it across
// the check, the staging, and the commit.
package admission

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
)

// NowMs returns the current wall clock in unix milliseconds. Tests stub it.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Gate records which dedup keys have been admitted. The gate is shared per
// runtime, so its lock serializes admissions across every facade built over
// the same store.
type Gate struct {
	db *pebblestore.DB
	mu sync.Mutex
}

// NewGate creates a gate over db.
func NewGate(db *pebblestore.DB) *Gate {
	return &Gate{db: db}
}

// Lock acquires the admission lock. Hold it from the Admitted check through
// the commit of the batch carrying StageAdmit.
func (g *Gate) Lock() { g.mu.Lock() }

// Unlock releases the admission lock.
func (g *Gate) Unlock() { g.mu.Unlock() }

// Admitted reports whether key has already been admitted.
func (g *Gate) Admitted(key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	return g.db.Has(KeyAdmission(key))
}

// StageAdmit stages the admission record for key on b. The record value is
// the admission time in unix milliseconds.
func (g *Gate) StageAdmit(b *pebble.Batch, key string) error {
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], uint64(NowMs()))
	return b.Set(KeyAdmission(key), val[:], nil)
}

// AdmittedAt returns the admission time for key, or ok=false if it was never
// admitted.
func (g *Gate) AdmittedAt(key string) (time.Time, bool, error) {
	val, err := g.db.Get(KeyAdmission(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if len(val) != 8 {
		return time.Time{}, false, nil
	}
	ms := int64(binary.BigEndian.Uint64(val))
	return time.UnixMilli(ms), true, nil
}

// Forget removes the admission record for key, allowing it to be admitted
// again. Intended for operator tooling and retention sweeps.
func (g *Gate) Forget(key string) error {
	return g.db.Delete(KeyAdmission(key))
}

// SweepBefore deletes admission records older than cutoff, batchLimit keys per
// commit. Returns the number of records removed.
func (g *Gate) SweepBefore(ctx context.Context, cutoff time.Time, batchLimit int) (int, error) {
	if batchLimit <= 0 {
		batchLimit = 512
	}
	cutoffMs := uint64(cutoff.UnixMilli())

	lo, hi := admissionBounds()
	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		it, err := g.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
		if err != nil {
			return deleted, err
		}
		b := g.db.NewBatch()
		n := 0
		for ok := it.First(); ok && n < batchLimit; ok = it.Next() {
			val := it.Value()
			if len(val) != 8 || binary.BigEndian.Uint64(val) >= cutoffMs {
				continue
			}
			if err := b.Delete(append([]byte(nil), it.Key()...), nil); err != nil {
				_ = it.Close()
				b.Close()
				return deleted, err
			}
			n++
		}
		if err := it.Close(); err != nil {
			b.Close()
			return deleted, err
		}
		if n == 0 {
			b.Close()
			return deleted, nil
		}
		if err := g.db.CommitBatch(ctx, b); err != nil {
			b.Close()
			return deleted, err
		}
		b.Close()
		deleted += n
		if n < batchLimit {
			return deleted, nil
		}
	}
}
