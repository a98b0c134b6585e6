package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/obc-alarm/internal/clock"
	"github.com/oshokin/obc-alarm/internal/domain/alarm"
	"github.com/oshokin/obc-alarm/internal/domain/command"
	"github.com/oshokin/obc-alarm/internal/logger"
	"github.com/oshokin/obc-alarm/internal/rtc"
)

// DefaultQueueLength is the number of uplinked commands waiting to be processed.
const DefaultQueueLength = 25

// Scheduler accepts time-tagged commands and reports queue occupancy.
type Scheduler interface {
	SubmitAlarm(ctx context.Context, e alarm.Entry, timeout time.Duration) error
	PendingCount() int
	Capacity() int
}

// Options configures a Manager.
type Options struct {
	// Scheduler runs time-tagged commands.
	Scheduler Scheduler
	// Clock is the software clock; rtc_sync updates it.
	Clock clock.Setter
	// RTC, when set, receives the calendar written by rtc_sync.
	RTC rtc.ClockSetter
	// Downlinker receives the acknowledgement of every processed command.
	Downlinker command.Downlinker
	// Reset is called by exec_obc_reset.
	Reset func(ctx context.Context) error
	// SendTimeout bounds each alarm submission.
	SendTimeout time.Duration
	// QueueLength bounds the uplink queue.
	QueueLength int
}

var (
	// errNoCallback is returned for commands without a dispatch entry.
	errNoCallback = errors.New("command has no callback")
	// errSchedulerRequired is returned when Options.Scheduler is nil.
	errSchedulerRequired = errors.New("scheduler must be provided")
	// errClockRequired is returned when Options.Clock is nil.
	errClockRequired = errors.New("clock must be provided")
	// ErrQueueFull is returned by Enqueue when the uplink queue is full.
	ErrQueueFull = errors.New("command queue full")
)

// Manager is the command manager task.
type Manager struct {
	scheduler   Scheduler
	clock       clock.Setter
	rtc         rtc.ClockSetter
	downlinker  command.Downlinker
	reset       func(ctx context.Context) error
	sendTimeout time.Duration

	// table is the dispatch table indexed by command id.
	table [command.DownlinkTelem + 1]command.Callback
	// uplink buffers commands between the ground link and Run.
	uplink chan command.Message
}

// New creates a Manager.
func New(opts *Options) (*Manager, error) {
	if opts.Scheduler == nil {
		return nil, errSchedulerRequired
	}

	if opts.Clock == nil {
		return nil, errClockRequired
	}

	queueLength := opts.QueueLength
	if queueLength <= 0 {
		queueLength = DefaultQueueLength
	}

	m := &Manager{
		scheduler:   opts.Scheduler,
		clock:       opts.Clock,
		rtc:         opts.RTC,
		downlinker:  opts.Downlinker,
		reset:       opts.Reset,
		sendTimeout: opts.SendTimeout,
		uplink:      make(chan command.Message, queueLength),
	}

	m.table = m.dispatchTable()

	return m, nil
}

// Enqueue hands an uplinked command to Run without blocking.
func (m *Manager) Enqueue(msg command.Message) error {
	select {
	case m.uplink <- msg.Clone():
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes enqueued commands until ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "command-manager")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-m.uplink:
			// Failures are already logged and acknowledged downlink.
			_ = m.Process(ctx, msg)
		}
	}
}

// Process verifies msg and executes or schedules it. Commands that pass
// verification are acknowledged downlink with their result; rejected ones
// are only logged.
func (m *Manager) Process(ctx context.Context, msg command.Message) error {
	ctx = logger.WithFields(ctx, "command", msg.ID, "time_tagged", msg.IsTimeTagged)

	cb, err := m.verify(&msg)
	if err != nil {
		logger.ErrorKV(ctx, "Command rejected", "error", err)

		return err
	}

	out := make([]byte, command.MaxResponseDataSize)

	var n int
	if msg.IsTimeTagged {
		err = m.processTimeTagged(ctx, &msg, cb)
	} else {
		n, err = cb(ctx, &msg, out)
		n = min(max(n, 0), len(out))
	}

	if err != nil {
		logger.ErrorKV(ctx, "Command failed", "error", err)
	} else {
		logger.DebugKV(ctx, "Command processed", "response_bytes", n)
	}

	m.acknowledge(ctx, command.NewResponse(msg.ID, err, out[:n]))

	return err
}

// BindCommand returns the dispatch callback for id.
func (m *Manager) BindCommand(id command.ID) (command.Callback, bool) {
	if !id.Valid() || m.table[id] == nil {
		return nil, false
	}

	return m.table[id], true
}

func (m *Manager) verify(msg *command.Message) (command.Callback, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	cb := m.table[msg.ID]
	if cb == nil {
		return nil, fmt.Errorf("%w: %s", errNoCallback, msg.ID)
	}

	return cb, nil
}

// processTimeTagged schedules msg. A timestamp that is not in the future is
// discarded and counts as success.
func (m *Manager) processTimeTagged(ctx context.Context, msg *command.Message, cb command.Callback) error {
	now := m.clock.Now()
	if msg.Timestamp <= now {
		logger.WarnKV(ctx, "Discarding time-tagged command that is not in the future", "timestamp", msg.Timestamp, "now", now)

		return nil
	}

	entry := alarm.NewTimeTaggedCommand(msg.Timestamp, cb, msg)
	if err := m.scheduler.SubmitAlarm(ctx, entry, m.sendTimeout); err != nil {
		return fmt.Errorf("schedule command: %w", err)
	}

	logger.InfoKV(ctx, "Time-tagged command scheduled", "alarm_id", entry.ID, "timestamp", msg.Timestamp)

	return nil
}

func (m *Manager) acknowledge(ctx context.Context, resp command.Response) {
	if m.downlinker == nil {
		return
	}

	if err := m.downlinker.DownlinkCommandResponse(ctx, resp); err != nil {
		logger.ErrorKV(ctx, "Failed to downlink command response", "error", err)
	}
}
