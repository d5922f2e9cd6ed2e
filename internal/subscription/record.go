package subscription

import (
	"encoding/json"

	"github.com/jdertmann/herald/internal/eventlog"
)

// Destination is a subscriber's durable state: the filter applied before
// delivery and the cursor pointing at the last fully processed log entry.
// After a migration the old identity keeps only a redirect marker.
type Destination struct {
	ID           string
	Filter       string
	Cursor       eventlog.EntryID
	MigratedTo   string
	MigratedAtMs int64
}

// Migrated reports whether this record is a redirect marker.
func (d Destination) Migrated() bool { return d.MigratedTo != "" }

type storedDestination struct {
	Filter       string `json:"filter,omitempty"`
	CursorEpoch  uint64 `json:"cursor_epoch,omitempty"`
	CursorSeq    uint64 `json:"cursor_seq,omitempty"`
	MigratedTo   string `json:"migrated_to,omitempty"`
	MigratedAtMs int64  `json:"migrated_at_ms,omitempty"`
}

func encodeDestination(d Destination) ([]byte, error) {
	return json.Marshal(storedDestination{
		Filter:       d.Filter,
		CursorEpoch:  d.Cursor.Epoch,
		CursorSeq:    d.Cursor.Seq,
		MigratedTo:   d.MigratedTo,
		MigratedAtMs: d.MigratedAtMs,
	})
}

func decodeDestination(id string, data []byte) (Destination, error) {
	var s storedDestination
	if err := json.Unmarshal(data, &s); err != nil {
		return Destination{}, err
	}
	return Destination{
		ID:           id,
		Filter:       s.Filter,
		Cursor:       eventlog.EntryID{Epoch: s.CursorEpoch, Seq: s.CursorSeq},
		MigratedTo:   s.MigratedTo,
		MigratedAtMs: s.MigratedAtMs,
	}, nil
}
