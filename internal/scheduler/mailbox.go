package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/obc-alarm/internal/domain/alarm"
)

// EventKind tags a mailbox event.
type EventKind uint8

const (
	// EventNewAlarm carries an alarm submitted by a producer.
	EventNewAlarm EventKind = iota + 1
	// EventAlarmTriggered signals that the hardware alarm fired.
	EventAlarmTriggered
)

// String returns the event name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventNewAlarm:
		return "new_alarm"
	case EventAlarmTriggered:
		return "alarm_triggered"
	default:
		return "unknown"
	}
}

// Event is a mailbox item. Entry is set only for EventNewAlarm.
type Event struct {
	Kind  EventKind
	Entry alarm.Entry
}

// Mailbox is a bounded FIFO shared by producers, the interrupt bridge and the
// scheduler goroutine. Storage is allocated once so SendToFront never allocates.
type Mailbox struct {
	// mu guards the ring fields below.
	mu sync.Mutex
	// ring holds the events; head indexes the oldest one.
	ring []Event
	head int
	n    int
	// receivers counts goroutines blocked in Receive.
	receivers int

	// notEmpty and notFull wake blocked receivers and senders.
	notEmpty chan struct{}
	notFull  chan struct{}
}

// NewMailbox creates a mailbox holding up to length events (at least one).
func NewMailbox(length int) *Mailbox {
	length = max(length, 1)

	return &Mailbox{
		ring:     make([]Event, length),
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
}

// Send appends ev, waiting up to timeout for space. A non-positive timeout
// fails immediately with ErrMailboxFull.
func (m *Mailbox) Send(ctx context.Context, ev Event, timeout time.Duration) error {
	if m.tryPushBack(ev) {
		return nil
	}

	if timeout <= 0 {
		return ErrMailboxFull
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrMailboxTimeout
		case <-m.notFull:
			if m.tryPushBack(ev) {
				return nil
			}
		}
	}
}

// SendToFront puts ev ahead of every queued event without blocking. It
// reports whether a receiver was waiting for it.
func (m *Mailbox) SendToFront(ev Event) (bool, error) {
	m.mu.Lock()

	if m.n == len(m.ring) {
		m.mu.Unlock()

		return false, ErrMailboxFull
	}

	m.head = (m.head - 1 + len(m.ring)) % len(m.ring)
	m.ring[m.head] = ev
	m.n++
	woken := m.receivers > 0

	m.mu.Unlock()

	signal(m.notEmpty)

	return woken, nil
}

// Receive removes the oldest event, waiting up to timeout for one.
func (m *Mailbox) Receive(ctx context.Context, timeout time.Duration) (Event, error) {
	if ev, ok := m.tryPopFront(); ok {
		return ev, nil
	}

	m.mu.Lock()
	m.receivers++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.receivers--
		m.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-timer.C:
			return Event{}, ErrMailboxTimeout
		case <-m.notEmpty:
			if ev, ok := m.tryPopFront(); ok {
				return ev, nil
			}
		}
	}
}

// Len returns the number of queued events.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.n
}

func (m *Mailbox) tryPushBack(ev Event) bool {
	m.mu.Lock()

	if m.n == len(m.ring) {
		m.mu.Unlock()

		return false
	}

	m.ring[(m.head+m.n)%len(m.ring)] = ev
	m.n++
	spare := m.n < len(m.ring)

	m.mu.Unlock()

	signal(m.notEmpty)

	// Pass the wake-up on to the next blocked sender.
	if spare {
		signal(m.notFull)
	}

	return true
}

func (m *Mailbox) tryPopFront() (Event, bool) {
	m.mu.Lock()

	if m.n == 0 {
		m.mu.Unlock()

		return Event{}, false
	}

	ev := m.ring[m.head]
	m.ring[m.head] = Event{}
	m.head = (m.head + 1) % len(m.ring)
	m.n--
	more := m.n > 0

	m.mu.Unlock()

	signal(m.notFull)

	if more {
		signal(m.notEmpty)
	}

	return ev, true
}

// signal leaves a wake-up token on ch unless one is already pending.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
