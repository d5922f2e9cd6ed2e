package eventlog

import (
	"context"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
)

// Log provides append-only operations over the shared broadcast log.
type Log struct {
	db  *pebblestore.DB
	gen *Generator

	mu       sync.Mutex
	lastID   EntryID
	notifyCh chan struct{}
}

// Open initializes the Log and restores the last assigned ID from metadata,
// so IDs keep increasing across restarts.
func Open(db *pebblestore.DB) (*Log, error) {
	l := &Log{db: db, notifyCh: make(chan struct{})}
	if meta, err := db.Get(KeyLogMeta()); err == nil && len(meta) >= 16 {
		if id, err := DecodeEntryID(meta); err == nil {
			l.lastID = id
		}
	}
	l.gen = NewGenerator(l.lastID)
	return l, nil
}

// Append appends one entry atomically and returns its assigned ID.
func (l *Log) Append(ctx context.Context, dedupKey string, payload []byte) (EntryID, error) {
	b := l.db.NewBatch()
	defer b.Close()

	id, err := l.StageAppend(b, dedupKey, payload)
	if err != nil {
		return EntryID{}, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return EntryID{}, err
	}
	l.Notify()
	return id, nil
}

// StageAppend assigns an ID and stages the entry plus metadata into the
// caller's batch. The caller commits the batch and then calls Notify.
func (l *Log) StageAppend(b *pebble.Batch, dedupKey string, payload []byte) (EntryID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.gen.Next()
	if err := b.Set(KeyEntry(id), EncodeRecord(dedupKey, payload), nil); err != nil {
		return EntryID{}, err
	}
	enc := id.Encode()
	if err := b.Set(KeyLogMeta(), enc[:], nil); err != nil {
		return EntryID{}, err
	}
	l.lastID = id
	return id, nil
}

// Notify wakes readers blocked in WaitForAppend. Called after a successful
// commit of a staged append.
func (l *Log) Notify() {
	l.mu.Lock()
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	l.mu.Unlock()
}

// Tail returns the ID of the most recently appended entry, or Zero when the
// log is empty. New destinations start here: no history replay.
func (l *Log) Tail() EntryID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastID
}
