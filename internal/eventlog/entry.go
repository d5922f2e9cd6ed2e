package eventlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EntryID identifies a log entry as an (epoch, sequence) pair. Epoch is a
// millisecond wall-clock value, Seq a per-epoch counter. IDs are totally
// ordered by epoch, then sequence. The zero value precedes all real entries.
type EntryID struct {
	Epoch uint64
	Seq   uint64
}

// Zero is the reserved minimum; no real entry carries it.
var Zero = EntryID{}

// IsZero reports whether the ID is the reserved minimum.
func (e EntryID) IsZero() bool { return e.Epoch == 0 && e.Seq == 0 }

// Compare returns -1, 0, 1 ordering by epoch then sequence.
func (e EntryID) Compare(o EntryID) int {
	switch {
	case e.Epoch < o.Epoch:
		return -1
	case e.Epoch > o.Epoch:
		return 1
	case e.Seq < o.Seq:
		return -1
	case e.Seq > o.Seq:
		return 1
	default:
		return 0
	}
}

// Less reports whether e orders strictly before o.
func (e EntryID) Less(o EntryID) bool { return e.Compare(o) < 0 }

// Max returns the greater of e and o.
func (e EntryID) Max(o EntryID) EntryID {
	if e.Less(o) {
		return o
	}
	return e
}

// String renders the ID as "epoch-seq", e.g. "5-0".
func (e EntryID) String() string {
	return strconv.FormatUint(e.Epoch, 10) + "-" + strconv.FormatUint(e.Seq, 10)
}

// ParseEntryID parses the "epoch-seq" form produced by String.
func ParseEntryID(s string) (EntryID, error) {
	epoch, seq, ok := strings.Cut(s, "-")
	if !ok {
		return EntryID{}, fmt.Errorf("eventlog: malformed entry id %q", s)
	}
	ep, err := strconv.ParseUint(epoch, 10, 64)
	if err != nil {
		return EntryID{}, fmt.Errorf("eventlog: malformed entry id %q", s)
	}
	sq, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return EntryID{}, fmt.Errorf("eventlog: malformed entry id %q", s)
	}
	return EntryID{Epoch: ep, Seq: sq}, nil
}

// Encode returns the 16-byte big-endian representation; its lexicographic
// order matches Compare, which keeps Pebble range scans in ID order.
func (e EntryID) Encode() [16]byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], e.Epoch)
	binary.BigEndian.PutUint64(b[8:16], e.Seq)
	return b
}

// DecodeEntryID reads a 16-byte big-endian ID.
func DecodeEntryID(b []byte) (EntryID, error) {
	if len(b) < 16 {
		return EntryID{}, errors.New("eventlog: short entry id")
	}
	return EntryID{
		Epoch: binary.BigEndian.Uint64(b[0:8]),
		Seq:   binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// Generator produces strictly increasing EntryIDs per process. If the clock
// regresses it stays on the last epoch and increments the sequence.
type Generator struct {
	mu   sync.Mutex
	last EntryID
}

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// NewGenerator returns a Generator that will only emit IDs greater than last.
func NewGenerator(last EntryID) *Generator { return &Generator{last: last} }

// Next returns a new ID strictly greater than every previously returned or
// seeded ID.
func (g *Generator) Next() EntryID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := uint64(NowMs())
	if ms > g.last.Epoch {
		g.last = EntryID{Epoch: ms, Seq: 0}
		return g.last
	}
	g.last.Seq++
	return g.last
}
