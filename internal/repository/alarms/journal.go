package alarms

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/oshokin/obc-alarm/internal/domain/alarm"
	"github.com/oshokin/obc-alarm/internal/domain/command"
	"github.com/oshokin/obc-alarm/internal/logger"
)

// Binder re-attaches callbacks to restored records.
type Binder interface {
	// BindDefault returns the action registered under name for an alarm
	// due at triggerTime.
	BindDefault(name string, triggerTime uint32) (func(ctx context.Context) error, bool)
	// BindCommand returns the callback for a command id.
	BindCommand(id command.ID) (command.Callback, bool)
}

// errTooManyEntries is returned when the queue outgrows the repository.
var errTooManyEntries = errors.New("more alarms than slots")

// Journal mirrors the scheduler queue into a Repository. Slot i holds the
// i-th pending alarm; slots whose occupant did not change are not rewritten.
type Journal struct {
	// repo is the slot storage.
	repo Repository
	// slots remembers the alarm id last written to each slot.
	slots []uuid.UUID
}

// NewJournal creates a journal over repo.
func NewJournal(repo Repository) *Journal {
	return &Journal{
		repo:  repo,
		slots: make([]uuid.UUID, repo.Capacity()),
	}
}

// Sync stores entries in slot order and clears the slots after them.
func (j *Journal) Sync(ctx context.Context, entries []alarm.Entry) error {
	if len(entries) > len(j.slots) {
		return fmt.Errorf("%w: %d > %d", errTooManyEntries, len(entries), len(j.slots))
	}

	for i := range entries {
		if j.slots[i] == entries[i].ID && entries[i].ID != uuid.Nil {
			continue
		}

		rec, err := RecordOf(&entries[i])
		if err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}

		if err = j.repo.Set(ctx, i, &rec); err != nil {
			return err
		}

		j.slots[i] = entries[i].ID
	}

	for i := len(entries); i < len(j.slots); i++ {
		if j.slots[i] == uuid.Nil {
			continue
		}

		if err := j.repo.Delete(ctx, i); err != nil {
			return err
		}

		j.slots[i] = uuid.Nil
	}

	return nil
}

// Restore rebuilds the stored entries. Records due before now, records that
// fail their integrity check and records with no registered callback are
// dropped and logged; the rest are returned in slot order.
func (j *Journal) Restore(ctx context.Context, now uint32, binder Binder) ([]alarm.Entry, error) {
	ctx = logger.WithName(ctx, "journal")

	entries := make([]alarm.Entry, 0, len(j.slots))

	for slot := range j.slots {
		rec, err := j.repo.Get(ctx, slot)

		switch {
		case err == nil:
		case errors.Is(err, ErrNotFound):
			continue
		case errors.Is(err, ErrCorrupt):
			logger.ErrorKV(ctx, "Skipping corrupt alarm slot", "slot", slot, "error", err)

			// Force the slot to be rewritten or cleared by the next Sync.
			j.slots[slot] = uuid.New()

			continue
		default:
			return nil, fmt.Errorf("load slot %d: %w", slot, err)
		}

		j.slots[slot] = rec.ID

		if rec.TriggerTime < now {
			logger.WarnKV(ctx, "Dropping expired alarm",
				"slot", slot,
				"alarm_id", rec.ID,
				"kind", rec.Kind,
				"trigger_time", rec.TriggerTime,
				"now", now)

			continue
		}

		entry, ok := bind(&rec, binder)
		if !ok {
			logger.WarnKV(ctx, "Dropping alarm with no registered callback",
				"slot", slot, "alarm_id", rec.ID, "kind", rec.Kind, "name", rec.Name, "command", rec.Command.ID)

			continue
		}

		entries = append(entries, entry)
	}

	logger.InfoKV(ctx, "Alarms restored", "count", len(entries))

	return entries, nil
}

func bind(rec *Record, binder Binder) (alarm.Entry, bool) {
	entry := alarm.Entry{
		ID:          rec.ID,
		TriggerTime: rec.TriggerTime,
	}

	switch rec.Kind {
	case alarm.KindDefault:
		run, ok := binder.BindDefault(rec.Name, rec.TriggerTime)
		if !ok {
			return alarm.Entry{}, false
		}

		entry.Action = alarm.DefaultAction{Name: rec.Name, Run: run}
	case alarm.KindTimeTaggedCommand:
		cb, ok := binder.BindCommand(rec.Command.ID)
		if !ok {
			return alarm.Entry{}, false
		}

		entry.Action = alarm.CommandAction{Callback: cb, Command: rec.Command.Clone()}
	default:
		return alarm.Entry{}, false
	}

	return entry, true
}
