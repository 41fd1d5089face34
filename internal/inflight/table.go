// Package inflight tracks outstanding queries between send and either a
// matching response or a timeout sweep.
package inflight

import "time"

// Entry records when a query was sent. Kept minimal: only what latency
// reporting needs.
type Entry struct {
	SendTime time.Time
}

// Table maps transaction ID to its in-flight entry. It is not safe for
// concurrent use; each generator owns one table on its own goroutine.
type Table struct {
	entries map[uint16]Entry
}

// New creates an empty table with room for 4096 entries up front; it
// grows as needed up to the full transaction ID universe.
func New() *Table {
	return &Table{entries: make(map[uint16]Entry, 1<<12)}
}

// Insert records the send time for id. Any existing entry for id is
// overwritten; callers must only insert ids just taken from the
// allocator, which guarantees no collision.
func (t *Table) Insert(id uint16, now time.Time) {
	t.entries[id] = Entry{SendTime: now}
}

// Complete removes id and returns the elapsed latency since it was sent.
// ok is false if id was not in the table (a bad receive); the table is
// unchanged in that case.
func (t *Table) Complete(id uint16, now time.Time) (latency time.Duration, ok bool) {
	e, present := t.entries[id]
	if !present {
		return 0, false
	}
	delete(t.entries, id)
	return now.Sub(e.SendTime), true
}

// Sweep returns every id whose age is >= timeout (or every id, if
// hardReset is true), removing them from the table. Callers are
// responsible for releasing the returned ids back to the allocator.
func (t *Table) Sweep(now time.Time, timeout time.Duration, hardReset bool) []uint16 {
	var expired []uint16
	for id, e := range t.entries {
		if hardReset || now.Sub(e.SendTime) >= timeout {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(t.entries, id)
	}
	return expired
}

// Len reports how many queries are currently in flight.
func (t *Table) Len() int {
	return len(t.entries)
}
