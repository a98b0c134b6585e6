package alarms

import (
	"context"
	"errors"
	"fmt"
)

// Repository stores one record per slot.
type Repository interface {
	// Capacity returns the number of slots.
	Capacity() int
	// Get returns the record in slot, or ErrNotFound for an empty slot.
	Get(ctx context.Context, slot int) (Record, error)
	// Set stores rec in slot.
	Set(ctx context.Context, slot int, rec *Record) error
	// Delete empties slot.
	Delete(ctx context.Context, slot int) error
	// Close releases the backing storage.
	Close() error
}

var (
	// ErrNotFound is returned for empty slots.
	ErrNotFound = errors.New("alarm slot empty")
	// ErrCorrupt is returned when a slot fails its integrity check.
	ErrCorrupt = errors.New("alarm slot corrupt")
	// ErrSlotOutOfRange is returned for slot indexes outside the repository.
	ErrSlotOutOfRange = errors.New("alarm slot out of range")
)

func checkSlot(slot, capacity int) error {
	if slot < 0 || slot >= capacity {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrSlotOutOfRange, slot, capacity)
	}

	return nil
}
