// Package session records the queries asked during one investigation and
// aggregates the discoveries they made.
package session

import (
	"crypto/rand"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry is one recorded query.
type Entry struct {
	ID          string
	Time        time.Time
	QueryText   string
	Valid       bool
	Success     bool
	ResultCount int
	Significant bool
	Category    string
}

// Log accumulates entries in the order queries were asked. It is not safe
// for concurrent use; the engine is single-threaded by design.
type Log struct {
	entropy *ulid.MonotonicEntropy
	entries []Entry
	found   map[string]bool
}

// NewLog creates an empty session log.
func NewLog() *Log {
	return &Log{
		entropy: ulid.Monotonic(rand.Reader, 0),
		found:   make(map[string]bool),
	}
}

// Record appends an entry, stamping it with a monotonic ULID.
func (l *Log) Record(e Entry) Entry {
	e.ID = ulid.MustNew(ulid.Now(), l.entropy).String()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	l.entries = append(l.entries, e)
	if e.Significant && e.Category != "" {
		l.found[e.Category] = true
	}
	return e
}

// Entries returns a copy of the recorded entries in order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// QueriesAsked returns how many queries were recorded, valid or not.
func (l *Log) QueriesAsked() int { return len(l.entries) }

// Discoveries returns the significance categories seen so far, sorted.
func (l *Log) Discoveries() []string {
	out := make([]string, 0, len(l.found))
	for cat := range l.found {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
