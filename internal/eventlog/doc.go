// Package eventlog implements Herald's internal append-only broadcast log.
//
// # Overview
//
// The log is a single ordered sequence persisted in Pebble. Entry IDs are
// (epoch, sequence) pairs where epoch is a millisecond timestamp and
// sequence a per-epoch counter; the reserved Zero ID precedes all real
// entries. Keys are lexicographically ordered for efficient range scans:
//   - log/m                       (metadata: last assigned EntryID)
//   - log/e/{epoch_be8}{seq_be8}  (entries)
//
// Records are stored as: varint keyLen | dedupKey | payload |
// crc32c(dedupKey|payload).
//
// API surface (internal)
//
//	l, _ := eventlog.Open(db)
//	// Append an entry; returns the assigned ID
//	id, _ := l.Append(ctx, "doc#1", payload)
//
//	// Read entries strictly after a given ID
//	entries, _ := l.ReadAfter(cursor, 100)
//
//	// Neighbour lookup used by cursor rollback
//	prev, _ := l.EntryBefore(id)
//
//	// Blocking wait/notify
//	woke := l.WaitForAppend(200 * time.Millisecond)
//	_ = woke
//
//	// Retention (administrative, batched and throttled)
//	_, _ = l.TrimBefore(ctx, cutoff, 1024, 0)
package eventlog
