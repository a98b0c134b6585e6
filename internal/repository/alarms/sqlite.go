package alarms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS alarm_slots (
	slot         INTEGER PRIMARY KEY,
	alarm_id     TEXT    NOT NULL,
	kind         TEXT    NOT NULL,
	trigger_time INTEGER NOT NULL,
	record       BLOB    NOT NULL
)`

// SQLiteRepository keeps the slots in a SQLite table. Kind and trigger time
// are stored in plain columns so the table can be inspected on the ground.
type SQLiteRepository struct {
	// db is the open database handle.
	db *sql.DB
	// capacity is the number of slots.
	capacity int
}

var _ Repository = (*SQLiteRepository)(nil)

// OpenSQLite opens or creates the database at path with capacity slots.
func OpenSQLite(ctx context.Context, path string, capacity int) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open alarm database: %w", err)
	}

	// One writer keeps SQLite from returning SQLITE_BUSY to the scheduler.
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create alarm schema: %w", err)
	}

	return &SQLiteRepository{
		db:       db,
		capacity: capacity,
	}, nil
}

// Capacity implements Repository.
func (r *SQLiteRepository) Capacity() int {
	return r.capacity
}

// Get implements Repository.
func (r *SQLiteRepository) Get(ctx context.Context, slot int) (Record, error) {
	if err := checkSlot(slot, r.capacity); err != nil {
		return Record{}, err
	}

	var payload []byte

	err := r.db.QueryRowContext(ctx, `SELECT record FROM alarm_slots WHERE slot = ?`, slot).Scan(&payload)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Record{}, ErrNotFound
	case err != nil:
		return Record{}, fmt.Errorf("query slot %d: %w", slot, err)
	}

	var rec Record
	if err = rec.UnmarshalBinary(payload); err != nil {
		return Record{}, fmt.Errorf("%w: slot %d: %w", ErrCorrupt, slot, err)
	}

	return rec, nil
}

// Set implements Repository.
func (r *SQLiteRepository) Set(ctx context.Context, slot int, rec *Record) error {
	if err := checkSlot(slot, r.capacity); err != nil {
		return err
	}

	payload, err := rec.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO alarm_slots (slot, alarm_id, kind, trigger_time, record) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			alarm_id = excluded.alarm_id,
			kind = excluded.kind,
			trigger_time = excluded.trigger_time,
			record = excluded.record`,
		slot, rec.ID.String(), rec.Kind.String(), int64(rec.TriggerTime), payload)
	if err != nil {
		return fmt.Errorf("store slot %d: %w", slot, err)
	}

	return nil
}

// Delete implements Repository.
func (r *SQLiteRepository) Delete(ctx context.Context, slot int) error {
	if err := checkSlot(slot, r.capacity); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM alarm_slots WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("delete slot %d: %w", slot, err)
	}

	return nil
}

// Close implements Repository.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
