package scheduler

import (
	"github.com/oshokin/obc-alarm/internal/domain/alarm"
)

// Queue is the bounded, time-ordered set of pending alarms. Entries are kept
// ascending by trigger time; equal times keep insertion order.
//
// Queue does no locking. It is owned by the scheduler goroutine.
type Queue struct {
	// entries is the fixed backing array; only the first n are live.
	entries []alarm.Entry
	// n is the number of live entries.
	n int
}

// NewQueue creates an empty queue holding at most capacity entries.
func NewQueue(capacity int) *Queue {
	return &Queue{
		entries: make([]alarm.Entry, capacity),
	}
}

// Enqueue inserts e after every entry due at or before it and returns the
// index it landed on. A full queue returns ErrQueueFull and is not modified.
func (q *Queue) Enqueue(e alarm.Entry) (int, error) {
	if q.n == len(q.entries) {
		return 0, ErrQueueFull
	}

	i := 0
	for i < q.n && q.entries[i].TriggerTime <= e.TriggerTime {
		i++
	}

	copy(q.entries[i+1:q.n+1], q.entries[i:q.n])
	q.entries[i] = e
	q.n++

	return i, nil
}

// DequeueEarliest removes and returns the entry at index 0.
func (q *Queue) DequeueEarliest() (alarm.Entry, error) {
	if q.n == 0 {
		return alarm.Entry{}, ErrQueueEmpty
	}

	e := q.entries[0]

	copy(q.entries, q.entries[1:q.n])
	q.n--
	q.entries[q.n] = alarm.Entry{}

	return e, nil
}

// PeekEarliest returns the entry at index 0 without removing it. The pointer
// is valid until the next mutation.
func (q *Queue) PeekEarliest() (*alarm.Entry, error) {
	if q.n == 0 {
		return nil, ErrQueueEmpty
	}

	return &q.entries[0], nil
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return q.n
}

// Cap returns the maximum number of entries.
func (q *Queue) Cap() int {
	return len(q.entries)
}

// Entries returns a copy of the pending entries in firing order.
func (q *Queue) Entries() []alarm.Entry {
	out := make([]alarm.Entry, q.n)
	copy(out, q.entries[:q.n])

	return out
}
