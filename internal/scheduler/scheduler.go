package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/obc-alarm/internal/clock"
	"github.com/oshokin/obc-alarm/internal/domain/alarm"
	"github.com/oshokin/obc-alarm/internal/domain/command"
	"github.com/oshokin/obc-alarm/internal/rtc"
)

const (
	// MaxQueueCapacity is the number of alarm slots the persistent store backs.
	MaxQueueCapacity = 24
	// DefaultMailboxLength is the default number of pending mailbox events.
	DefaultMailboxLength = 64
	// DefaultDriftTolerance is how far the software clock may lag a hardware fire.
	DefaultDriftTolerance = 2 * time.Second
	// DefaultReceiveTimeout bounds each mailbox wait of the scheduler goroutine.
	DefaultReceiveTimeout = 10 * time.Millisecond
	// DefaultSendTimeout bounds each producer submission.
	DefaultSendTimeout = 10 * time.Millisecond
)

var (
	// errRTCRequired is returned when no RTC collaborator is configured.
	errRTCRequired = errors.New("rtc must be provided")
	// errClockRequired is returned when no clock collaborator is configured.
	errClockRequired = errors.New("clock must be provided")
	// errInvalidCapacity is returned for a queue capacity outside 1..MaxQueueCapacity.
	errInvalidCapacity = errors.New("queue capacity out of range")
	// errRunning is returned by Restore once the scheduler goroutine started.
	errRunning = errors.New("scheduler already running")
)

// Journal mirrors the pending alarms to persistent storage.
type Journal interface {
	Sync(ctx context.Context, entries []alarm.Entry) error
}

// Options configures a Scheduler. Zero values select the defaults.
type Options struct {
	// QueueCapacity is the number of alarms that may be pending at once.
	QueueCapacity int
	// MailboxLength is the number of events the mailbox holds.
	MailboxLength int
	// DriftTolerance is the allowed lag of the software clock behind a fire.
	DriftTolerance time.Duration
	// ReceiveTimeout bounds each mailbox wait.
	ReceiveTimeout time.Duration
	// RearmAfterDrain reprograms the register for the new earliest entry
	// after a firing pass.
	RearmAfterDrain bool

	// RTC is the alarm register collaborator.
	RTC rtc.RTC
	// Clock supplies the current Unix time.
	Clock clock.Clock
	// Downlinker receives responses of time-tagged commands. Optional.
	Downlinker command.Downlinker
	// Journal persists the queue after each change. Optional.
	Journal Journal
}

// Scheduler multiplexes logical alarms onto the single RTC alarm register.
type Scheduler struct {
	// queue and hw are owned by the Run goroutine.
	queue *Queue
	hw    *HardwareAlarm

	mailbox *Mailbox
	bridge  *InterruptBridge

	clock      clock.Clock
	downlinker command.Downlinker
	journal    Journal

	// tolerance is the drift tolerance in whole seconds.
	tolerance      uint32
	receiveTimeout time.Duration
	rearm          bool

	// scratch is the response buffer handed to command callbacks.
	scratch []byte

	// pending mirrors queue.Len for readers on other goroutines.
	pending atomic.Int32
	// running is set once Run starts.
	running atomic.Bool
}

// New creates a Scheduler.
func New(opts *Options) (*Scheduler, error) {
	if opts.RTC == nil {
		return nil, errRTCRequired
	}

	if opts.Clock == nil {
		return nil, errClockRequired
	}

	capacity := opts.QueueCapacity
	if capacity == 0 {
		capacity = MaxQueueCapacity
	}

	if capacity < 1 || capacity > MaxQueueCapacity {
		return nil, fmt.Errorf("%w: %d", errInvalidCapacity, capacity)
	}

	mailboxLength := opts.MailboxLength
	if mailboxLength <= 0 {
		mailboxLength = DefaultMailboxLength
	}

	tolerance := opts.DriftTolerance
	if tolerance <= 0 {
		tolerance = DefaultDriftTolerance
	}

	receiveTimeout := opts.ReceiveTimeout
	if receiveTimeout <= 0 {
		receiveTimeout = DefaultReceiveTimeout
	}

	mailbox := NewMailbox(mailboxLength)

	return &Scheduler{
		queue:          NewQueue(capacity),
		hw:             NewHardwareAlarm(opts.RTC),
		mailbox:        mailbox,
		bridge:         NewInterruptBridge(mailbox),
		clock:          opts.Clock,
		downlinker:     opts.Downlinker,
		journal:        opts.Journal,
		tolerance:      uint32(tolerance / time.Second),
		receiveTimeout: receiveTimeout,
		rearm:          opts.RearmAfterDrain,
		scratch:        make([]byte, command.MaxResponseDataSize),
	}, nil
}

// SubmitAlarm hands e to the scheduler, waiting up to timeout for mailbox
// space. A nil error means the mailbox accepted the entry, not that the queue
// did: a full queue drops it with a log line.
func (s *Scheduler) SubmitAlarm(ctx context.Context, e alarm.Entry, timeout time.Duration) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validate alarm: %w", err)
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	if err := s.mailbox.Send(ctx, Event{Kind: EventNewAlarm, Entry: e}, timeout); err != nil {
		return fmt.Errorf("submit alarm: %w", err)
	}

	return nil
}

// OnHardwareAlarmEdge is the RTC interrupt handler. It is safe to call from
// any goroutine and never blocks.
func (s *Scheduler) OnHardwareAlarmEdge() {
	s.bridge.OnEdge()
}

// Restore loads entries recovered from persistent storage. It must be called
// before Run. Entries that do not fit are returned with ErrQueueFull.
func (s *Scheduler) Restore(entries []alarm.Entry) error {
	if s.running.Load() {
		return errRunning
	}

	for i := range entries {
		if _, err := s.queue.Enqueue(entries[i]); err != nil {
			return fmt.Errorf("restore %d of %d: %w", i, len(entries), err)
		}
	}

	s.pending.Store(int32(s.queue.Len()))

	return nil
}

// PendingCount returns the number of queued alarms as of the last change.
func (s *Scheduler) PendingCount() int {
	return int(s.pending.Load())
}

// Capacity returns the queue capacity.
func (s *Scheduler) Capacity() int {
	return s.queue.Cap()
}
