// Package deliveryqueue stores per-destination FIFO queues of directly
// fanned-out messages. Producers push at admission time; each destination's
// delivery worker drains its own queue and removes messages after a
// successful send.
package deliveryqueue

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
)

// Message is one queued delivery.
type Message struct {
	DestinationID string
	Seq           uint64
	Payload       []byte
}

// Queues multiplexes every destination's queue over one store. Sequence
// assignment is serialized internally; batch staging composes with the
// caller's commit.
type Queues struct {
	db *pebblestore.DB

	mu   sync.Mutex
	last map[string]uint64
}

// NewQueues creates the queue set over db.
func NewQueues(db *pebblestore.DB) *Queues {
	return &Queues{db: db, last: make(map[string]uint64)}
}

// StagePush assigns the next sequence for destination and stages the message
// plus metadata update on b. The message becomes visible when b commits.
func (q *Queues) StagePush(b *pebble.Batch, destination string, payload []byte) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	seq, err := q.nextSeqLocked(destination)
	if err != nil {
		return 0, err
	}
	if err := b.Set(KeyEntry(destination, seq), EncodeRecord(payload), nil); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], seq)
	if err := b.Set(KeyMeta(destination), meta[:], nil); err != nil {
		return 0, err
	}
	q.last[destination] = seq
	return seq, nil
}

// Push appends a message to destination's queue and commits it.
func (q *Queues) Push(ctx context.Context, destination string, payload []byte) (uint64, error) {
	b := q.db.NewBatch()
	defer b.Close()
	seq, err := q.StagePush(b, destination, payload)
	if err != nil {
		return 0, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	return seq, nil
}

// Peek returns the oldest queued message without removing it.
func (q *Queues) Peek(destination string) (Message, bool, error) {
	lo, hi := entryBounds(destination)
	it, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return Message{}, false, err
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		seq, ok2 := seqFromKey(it.Key())
		if !ok2 {
			continue
		}
		payload, ok2 := DecodeRecord(it.Value())
		if !ok2 {
			// corrupt record, skip
			continue
		}
		return Message{DestinationID: destination, Seq: seq, Payload: payload}, true, nil
	}
	return Message{}, false, it.Error()
}

// Remove deletes a delivered message from destination's queue.
func (q *Queues) Remove(ctx context.Context, destination string, seq uint64) error {
	b := q.db.NewBatch()
	defer b.Close()
	if err := b.Delete(KeyEntry(destination, seq), nil); err != nil {
		return err
	}
	return q.db.CommitBatch(ctx, b)
}

// Pop atomically removes and returns the oldest queued message.
func (q *Queues) Pop(ctx context.Context, destination string) (Message, bool, error) {
	msg, ok, err := q.Peek(destination)
	if err != nil || !ok {
		return Message{}, false, err
	}
	if err := q.Remove(ctx, destination, msg.Seq); err != nil {
		return Message{}, false, err
	}
	return msg, true, nil
}

// Len counts the messages waiting for destination.
func (q *Queues) Len(destination string) (int, error) {
	lo, hi := entryBounds(destination)
	return q.count(lo, hi)
}

// Backlog counts queued messages across all destinations. Metadata keys are
// excluded.
func (q *Queues) Backlog() (int, error) {
	lo, hi := allBounds()
	it, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer it.Close()

	n := 0
	for ok := it.First(); ok; ok = it.Next() {
		if isEntryKey(it.Key()) {
			n++
		}
	}
	return n, it.Error()
}

// Drop removes a destination's queue entirely, metadata included. Used when a
// destination is migrated away or deleted.
func (q *Queues) Drop(ctx context.Context, destination string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lo, hi := entryBounds(destination)
	it, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return err
	}
	b := q.db.NewBatch()
	defer b.Close()
	for ok := it.First(); ok; ok = it.Next() {
		if err := b.Delete(append([]byte(nil), it.Key()...), nil); err != nil {
			_ = it.Close()
			return err
		}
	}
	if err := it.Close(); err != nil {
		return err
	}
	if err := b.Delete(KeyMeta(destination), nil); err != nil {
		return err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return err
	}
	delete(q.last, destination)
	return nil
}

func (q *Queues) count(lo, hi []byte) (int, error) {
	it, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for ok := it.First(); ok; ok = it.Next() {
		n++
	}
	return n, it.Error()
}

// nextSeqLocked returns the next sequence for destination, consulting the
// stored metadata on first use.
func (q *Queues) nextSeqLocked(destination string) (uint64, error) {
	if last, ok := q.last[destination]; ok {
		return last + 1, nil
	}
	val, err := q.db.Get(KeyMeta(destination))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 1, nil
		}
		return 0, err
	}
	if len(val) != 8 {
		return 1, nil
	}
	return binary.BigEndian.Uint64(val) + 1, nil
}

func isEntryKey(key []byte) bool {
	// dq/{destination}/e/{seq_be8}
	if len(key) < len(queuePrefix)+len(entryInfix)+8 {
		return false
	}
	infix := key[len(key)-8-len(entryInfix) : len(key)-8]
	return string(infix) == entryInfix
}
