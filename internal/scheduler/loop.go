package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/obc-alarm/internal/domain/alarm"
	"github.com/oshokin/obc-alarm/internal/domain/command"
	"github.com/oshokin/obc-alarm/internal/logger"
)

// Run consumes the mailbox until ctx is canceled. Only one Run may be active.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errRunning
	}

	ctx = logger.WithName(ctx, "scheduler")

	logger.InfoKV(ctx, "Scheduler started",
		"capacity", s.queue.Cap(),
		"pending", s.queue.Len(),
		"drift_tolerance_s", s.tolerance,
		"rearm_after_drain", s.rearm)

	s.armEarliest(ctx)

	for {
		ev, err := s.mailbox.Receive(ctx, s.receiveTimeout)

		switch {
		case err == nil:
		case errors.Is(err, ErrMailboxTimeout):
			s.reportDroppedEdges(ctx)

			continue
		case ctx.Err() != nil:
			logger.Info(ctx, "Scheduler stopped")

			return nil
		default:
			return fmt.Errorf("receive event: %w", err)
		}

		s.reportDroppedEdges(ctx)
		s.handle(ctx, &ev)
	}
}

// handle runs one transition of the state machine.
func (s *Scheduler) handle(ctx context.Context, ev *Event) {
	switch ev.Kind {
	case EventNewAlarm:
		s.handleNewAlarm(ctx, ev.Entry)
	case EventAlarmTriggered:
		s.handleAlarmTriggered(ctx)
	default:
		logger.ErrorKV(ctx, "Unsupported scheduler event", "kind", ev.Kind)
	}
}

func (s *Scheduler) handleNewAlarm(ctx context.Context, e alarm.Entry) {
	ctx = logger.WithFields(ctx, "alarm_id", e.ID, "kind", e.Kind(), "trigger_time", e.TriggerTime)

	idx, err := s.queue.Enqueue(e)
	if err != nil {
		logger.ErrorKV(ctx, "Alarm dropped", "error", err, "pending", s.queue.Len())

		return
	}

	logger.DebugKV(ctx, "Alarm queued", "index", idx, "pending", s.queue.Len())
	s.changed(ctx)

	if idx != 0 {
		return
	}

	s.armEarliest(ctx)
}

func (s *Scheduler) handleAlarmTriggered(ctx context.Context) {
	// The flag is sticky: an uncleared flag masks every later match.
	if err := s.hw.Acknowledge(ctx); err != nil {
		logger.ErrorKV(ctx, "Failed to acknowledge hardware alarm", "error", err)
	}

	earliest, err := s.queue.PeekEarliest()
	if err != nil {
		logger.ErrorKV(ctx, "Unexpected alarm event", "error", err)

		return
	}

	now := s.clock.Now()
	if uint64(now)+uint64(s.tolerance) < uint64(earliest.TriggerTime) {
		logger.ErrorKV(ctx, "Hardware alarm ignored",
			"error", ErrPrematureFire,
			"now", now,
			"trigger_time", earliest.TriggerTime,
			"alarm_id", earliest.ID)

		return
	}

	s.drain(ctx, now, earliest.TriggerTime)

	if s.rearm {
		s.armEarliest(ctx)
	}
}

// armEarliest programs the register with the earliest entry. Entries whose
// second has already passed can never match the register again, so they run
// right away and the next one is considered.
func (s *Scheduler) armEarliest(ctx context.Context) {
	for {
		earliest, err := s.queue.PeekEarliest()
		if err != nil {
			return
		}

		now := s.clock.Now()
		if earliest.TriggerTime > now {
			s.program(ctx, earliest)

			return
		}

		logger.WarnKV(ctx, "Alarm already due, running without hardware alarm",
			"alarm_id", earliest.ID,
			"trigger_time", earliest.TriggerTime,
			"now", now)

		s.drain(ctx, now, earliest.TriggerTime)
	}
}

// drain runs every queued entry whose trigger time is at or before threshold.
// Entries queued by callbacks during the pass wait for the next one.
func (s *Scheduler) drain(ctx context.Context, now, threshold uint32) {
	budget := s.queue.Len()
	fired := 0

	for range budget {
		next, err := s.queue.PeekEarliest()
		if err != nil || next.TriggerTime > threshold {
			break
		}

		entry, err := s.queue.DequeueEarliest()
		if err != nil {
			break
		}

		s.execute(ctx, &entry)
		fired++
	}

	logger.DebugKV(ctx, "Firing pass complete",
		"now", now,
		"threshold", threshold,
		"fired", fired,
		"pending", s.queue.Len())

	s.changed(ctx)
}

// execute runs a dequeued entry. Failures are logged and never stop the pass.
func (s *Scheduler) execute(ctx context.Context, e *alarm.Entry) {
	ctx = logger.WithFields(ctx, "alarm_id", e.ID, "kind", e.Kind(), "trigger_time", e.TriggerTime)

	switch action := e.Action.(type) {
	case alarm.DefaultAction:
		if err := action.Run(ctx); err != nil {
			logger.ErrorKV(ctx, "Alarm action failed",
				"action", action.Name,
				"error", fmt.Errorf("%w: %w", ErrCallbackFailure, err))

			return
		}

		logger.DebugKV(ctx, "Alarm action executed", "action", action.Name)
	case alarm.CommandAction:
		s.executeCommand(ctx, &action)
	default:
		logger.ErrorKV(ctx, "Unsupported alarm action", "action", fmt.Sprintf("%T", e.Action))
	}
}

// executeCommand runs a time-tagged command and reports the result downlink
// whether or not the callback succeeded.
func (s *Scheduler) executeCommand(ctx context.Context, action *alarm.CommandAction) {
	defer clear(s.scratch)

	msg := &action.Command

	n, cbErr := action.Callback(ctx, msg, s.scratch)
	if cbErr != nil {
		logger.ErrorKV(ctx, "Time-tagged command failed",
			"command", msg.ID,
			"error", fmt.Errorf("%w: %w", ErrCallbackFailure, cbErr))
	} else {
		logger.InfoKV(ctx, "Time-tagged command executed", "command", msg.ID)
	}

	n = min(max(n, 0), len(s.scratch))

	if s.downlinker == nil {
		return
	}

	resp := command.NewResponse(msg.ID, cbErr, s.scratch[:n])
	if err := s.downlinker.DownlinkCommandResponse(ctx, resp); err != nil {
		logger.ErrorKV(ctx, "Failed to downlink command response", "command", msg.ID, "error", err)
	}
}

// program points the hardware register at e, logging failures.
func (s *Scheduler) program(ctx context.Context, e *alarm.Entry) {
	if err := s.hw.SyncToEarliest(ctx, e); err != nil {
		logger.ErrorKV(ctx, "Failed to program hardware alarm",
			"alarm_id", e.ID,
			"trigger_time", e.TriggerTime,
			"error", err)

		return
	}

	logger.DebugKV(ctx, "Hardware alarm programmed", "alarm_id", e.ID, "trigger_time", e.TriggerTime)
}

// changed persists the queue, then publishes its length.
func (s *Scheduler) changed(ctx context.Context) {
	if s.journal != nil {
		if err := s.journal.Sync(ctx, s.queue.Entries()); err != nil {
			logger.ErrorKV(ctx, "Failed to persist alarm queue", "error", err)
		}
	}

	s.pending.Store(int32(s.queue.Len()))
}

func (s *Scheduler) reportDroppedEdges(ctx context.Context) {
	if n := s.bridge.TakeDropped(); n > 0 {
		logger.WarnKV(ctx, "Hardware alarm edges dropped", "count", n, "error", ErrMailboxFull)
	}
}
