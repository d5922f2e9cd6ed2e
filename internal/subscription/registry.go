// Package subscription tracks destinations: their filters, their delivery
// cursors into the event log, and the registered set of active identities.
//
// Every mutation is an expectation-check followed by a single atomic commit.
// A false return means the stored state did not match the caller's view
// (stale cursor, duplicate registration, unknown destination); it is never an
// error. Callers re-read and retry.
package subscription

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/jdertmann/herald/internal/eventlog"
	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
)

// DefaultRedirectTTL bounds how long a migrated identity keeps its redirect
// marker before lookups treat it as gone.
const DefaultRedirectTTL = 24 * time.Hour

// maxRedirectHops bounds redirect chains during resolution.
const maxRedirectHops = 8

// NowMs returns the current wall clock in unix milliseconds. Tests stub it.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Registry is the single writer for destination state.
type Registry struct {
	db          *pebblestore.DB
	log         *eventlog.Log
	redirectTTL time.Duration

	mu sync.Mutex
}

// NewRegistry creates a registry over db, anchored to log for tail and
// adjacency lookups. A zero redirectTTL selects DefaultRedirectTTL.
func NewRegistry(db *pebblestore.DB, log *eventlog.Log, redirectTTL time.Duration) *Registry {
	if redirectTTL <= 0 {
		redirectTTL = DefaultRedirectTTL
	}
	return &Registry{db: db, log: log, redirectTTL: redirectTTL}
}

// Register creates a destination or updates an existing one's filter.
//
// A new destination starts at the log's current tail, so it only sees entries
// appended after registration. If the destination already exists only its
// filter is updated and false is returned. A stale redirect marker at id is
// replaced by a fresh destination.
func (r *Registry) Register(ctx context.Context, id, filter string) (bool, error) {
	if id == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, found, err := r.getLocked(id)
	if err != nil {
		return false, err
	}
	if found && !existing.Migrated() {
		if existing.Filter == filter {
			return false, nil
		}
		existing.Filter = filter
		if err := r.putLocked(ctx, existing, true); err != nil {
			return false, err
		}
		return false, nil
	}

	dest := Destination{ID: id, Filter: filter, Cursor: r.log.Tail()}
	if err := r.putLocked(ctx, dest, true); err != nil {
		return false, err
	}
	return true, nil
}

// Acknowledge advances id's cursor to candidate if candidate is exactly the
// next entry after the stored cursor. Anything else returns false: the caller
// is behind or ahead and must re-read.
func (r *Registry) Acknowledge(ctx context.Context, id string, candidate eventlog.EntryID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dest, found, err := r.resolveLocked(id)
	if err != nil || !found {
		return false, err
	}

	next, err := r.log.ReadAfter(dest.Cursor, 1)
	if err != nil {
		return false, err
	}
	if len(next) == 0 || next[0].ID != candidate {
		return false, nil
	}

	dest.Cursor = candidate
	if err := r.putLocked(ctx, dest, false); err != nil {
		return false, err
	}
	return true, nil
}

// Unacknowledge rolls id's cursor back one position from expectedCurrent.
//
// Idempotent under retry: if the cursor already sits at the entry before
// expectedCurrent the rollback is considered applied and true is returned
// with no write. A cursor anywhere else returns false.
func (r *Registry) Unacknowledge(ctx context.Context, id string, expectedCurrent eventlog.EntryID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dest, found, err := r.resolveLocked(id)
	if err != nil || !found {
		return false, err
	}

	prev, err := r.log.EntryBefore(expectedCurrent)
	if err != nil {
		return false, err
	}
	if dest.Cursor == prev {
		return true, nil
	}
	if dest.Cursor != expectedCurrent {
		return false, nil
	}

	dest.Cursor = prev
	if err := r.putLocked(ctx, dest, false); err != nil {
		return false, err
	}
	return true, nil
}

// Migrate transplants oldID's subscription state to newID in one atomic
// commit: oldID leaves the registered set and keeps only a redirect marker,
// newID takes oldID's filter, and the merged cursor is the further-advanced
// of the two so neither side sees entries it already acknowledged.
//
// Returns false with no effect if oldID is not registered.
func (r *Registry) Migrate(ctx context.Context, oldID, newID string) (bool, error) {
	if oldID == "" || newID == "" || oldID == newID {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	registered, err := r.db.Has(KeyRegistered(oldID))
	if err != nil {
		return false, err
	}
	if !registered {
		return false, nil
	}
	old, found, err := r.getLocked(oldID)
	if err != nil {
		return false, err
	}
	if !found || old.Migrated() {
		return false, nil
	}

	cursor := old.Cursor
	if existing, found, err := r.getLocked(newID); err != nil {
		return false, err
	} else if found && !existing.Migrated() {
		cursor = cursor.Max(existing.Cursor)
	}

	merged := Destination{ID: newID, Filter: old.Filter, Cursor: cursor}
	marker := Destination{ID: oldID, MigratedTo: newID, MigratedAtMs: NowMs()}

	mergedVal, err := encodeDestination(merged)
	if err != nil {
		return false, err
	}
	markerVal, err := encodeDestination(marker)
	if err != nil {
		return false, err
	}

	b := r.db.NewBatch()
	defer b.Close()
	if err := b.Delete(KeyRegistered(oldID), nil); err != nil {
		return false, err
	}
	if err := b.Set(KeyRegistered(newID), nil, nil); err != nil {
		return false, err
	}
	if err := b.Set(KeyRecord(newID), mergedVal, nil); err != nil {
		return false, err
	}
	if err := b.Set(KeyRecord(oldID), markerVal, nil); err != nil {
		return false, err
	}
	if err := r.db.CommitBatch(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns id's raw record, redirect markers included. Expired markers
// read as absent.
func (r *Registry) Get(id string) (Destination, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

// Resolve returns the live destination reached from id, following redirect
// markers left by migrations.
func (r *Registry) Resolve(id string) (Destination, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(id)
}

// Registered reports whether id is in the registered set.
func (r *Registry) Registered(id string) (bool, error) {
	return r.db.Has(KeyRegistered(id))
}

// Destinations lists the registered set in lexicographic order.
func (r *Registry) Destinations() ([]string, error) {
	lo, hi := registeredBounds()
	it, err := r.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var ids []string
	for ok := it.First(); ok; ok = it.Next() {
		ids = append(ids, idFromRegisteredKey(it.Key()))
	}
	return ids, it.Error()
}

func (r *Registry) getLocked(id string) (Destination, bool, error) {
	val, err := r.db.Get(KeyRecord(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Destination{}, false, nil
		}
		return Destination{}, false, err
	}
	dest, err := decodeDestination(id, val)
	if err != nil {
		return Destination{}, false, err
	}
	if dest.Migrated() && r.markerExpired(dest) {
		// lazy cleanup of expired redirect markers
		_ = r.db.Delete(KeyRecord(id))
		return Destination{}, false, nil
	}
	return dest, true, nil
}

func (r *Registry) resolveLocked(id string) (Destination, bool, error) {
	for hop := 0; hop < maxRedirectHops; hop++ {
		dest, found, err := r.getLocked(id)
		if err != nil || !found {
			return Destination{}, false, err
		}
		if !dest.Migrated() {
			return dest, true, nil
		}
		id = dest.MigratedTo
	}
	return Destination{}, false, nil
}

func (r *Registry) markerExpired(d Destination) bool {
	return NowMs()-d.MigratedAtMs > r.redirectTTL.Milliseconds()
}

// putLocked persists dest, optionally ensuring registered-set membership.
func (r *Registry) putLocked(ctx context.Context, dest Destination, register bool) error {
	val, err := encodeDestination(dest)
	if err != nil {
		return err
	}
	b := r.db.NewBatch()
	defer b.Close()
	if err := b.Set(KeyRecord(dest.ID), val, nil); err != nil {
		return err
	}
	if register {
		if err := b.Set(KeyRegistered(dest.ID), nil, nil); err != nil {
			return err
		}
	}
	return r.db.CommitBatch(ctx, b)
}
