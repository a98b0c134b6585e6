package alarms

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/obc-alarm/internal/domain/alarm"
	"github.com/oshokin/obc-alarm/internal/domain/command"
)

func noop(context.Context) error { return nil }

func pingCallback(_ context.Context, _ *command.Message, out []byte) (int, error) {
	return copy(out, "pong"), nil
}

// fakeBinder knows one default action and the ping command.
type fakeBinder struct{}

func (fakeBinder) BindDefault(name string, _ uint32) (func(context.Context) error, bool) {
	if name != "heartbeat" {
		return nil, false
	}

	return noop, true
}

func (fakeBinder) BindCommand(id command.ID) (command.Callback, bool) {
	if id != command.Ping {
		return nil, false
	}

	return pingCallback, true
}

func sampleEntries() []alarm.Entry {
	msg := command.Message{ID: command.Ping, Timestamp: 300, IsTimeTagged: true, Params: []byte{1, 2, 3}}

	return []alarm.Entry{
		alarm.NewDefault(200, "heartbeat", noop),
		alarm.NewTimeTaggedCommand(300, pingCallback, &msg),
	}
}

type opener func(t *testing.T, capacity int) Repository

func openFile(t *testing.T, capacity int) Repository {
	t.Helper()

	repo, err := OpenFile(filepath.Join(t.TempDir(), "alarms.fram"), capacity)
	require.NoError(t, err)

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func openSQLite(t *testing.T, capacity int) Repository {
	t.Helper()

	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "alarms.db"), capacity)
	require.NoError(t, err)

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

// TestRepositories exercises both backends through the same contract.
func TestRepositories(t *testing.T) {
	t.Parallel()

	backends := map[string]opener{
		"file":   openFile,
		"sqlite": openSQLite,
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := open(t, 4)
			require.Equal(t, 4, repo.Capacity())

			_, err := repo.Get(ctx, 0)
			require.ErrorIs(t, err, ErrNotFound)

			_, err = repo.Get(ctx, 4)
			require.ErrorIs(t, err, ErrSlotOutOfRange)

			entries := sampleEntries()

			rec, err := RecordOf(&entries[1])
			require.NoError(t, err)
			require.NoError(t, repo.Set(ctx, 2, &rec))

			got, err := repo.Get(ctx, 2)
			require.NoError(t, err)
			require.Equal(t, rec, got)

			rec.TriggerTime = 400
			require.NoError(t, repo.Set(ctx, 2, &rec))

			got, err = repo.Get(ctx, 2)
			require.NoError(t, err)
			require.Equal(t, uint32(400), got.TriggerTime)

			require.NoError(t, repo.Delete(ctx, 2))

			_, err = repo.Get(ctx, 2)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// TestFileRepository_Corrupt detects a flipped payload bit.
func TestFileRepository_Corrupt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alarms.fram")

	repo, err := OpenFile(path, 2)
	require.NoError(t, err)

	entries := sampleEntries()

	rec, err := RecordOf(&entries[0])
	require.NoError(t, err)
	require.NoError(t, repo.Set(ctx, 1, &rec))
	require.NoError(t, repo.Close())

	image, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, image, 2*slotSize)

	image[slotSize+headerSize+3] ^= 0xFF
	require.NoError(t, os.WriteFile(path, image, 0o600))

	repo, err = OpenFile(path, 2)
	require.NoError(t, err)

	defer repo.Close()

	_, err = repo.Get(ctx, 1)
	require.ErrorIs(t, err, ErrCorrupt)
}

// TestRecord_UnknownAction refuses entries it cannot describe.
func TestRecord_UnknownAction(t *testing.T) {
	t.Parallel()

	_, err := RecordOf(&alarm.Entry{TriggerTime: 1})
	require.ErrorIs(t, err, errUnsupportedAction)

	var rec Record
	require.ErrorIs(t, rec.UnmarshalBinary([]byte{0xFF}), errMalformedRecord)
}

// TestJournal_SyncRestore mirrors the queue and rebuilds it after a reset.
func TestJournal_SyncRestore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openFile(t, 4)
	journal := NewJournal(repo)

	entries := sampleEntries()
	unbound := alarm.NewDefault(500, "retired", noop)
	expired := alarm.NewDefault(50, "heartbeat", noop)

	require.NoError(t, journal.Sync(ctx, []alarm.Entry{expired, entries[0], entries[1], unbound}))
	require.NoError(t, journal.Sync(ctx, []alarm.Entry{entries[0], entries[1]}))

	for _, slot := range []int{2, 3} {
		_, err := repo.Get(ctx, slot)
		require.ErrorIs(t, err, ErrNotFound)
	}

	require.NoError(t, journal.Sync(ctx, []alarm.Entry{expired, entries[0], entries[1], unbound}))

	restored, err := NewJournal(repo).Restore(ctx, 100, fakeBinder{})
	require.NoError(t, err)
	require.Len(t, restored, 2)

	require.Equal(t, entries[0].ID, restored[0].ID)
	require.Equal(t, alarm.KindDefault, restored[0].Kind())
	require.NoError(t, restored[0].Validate())

	require.Equal(t, entries[1].ID, restored[1].ID)
	action, ok := restored[1].Action.(alarm.CommandAction)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, action.Command.Params)

	out := make([]byte, 8)
	n, err := action.Callback(ctx, &action.Command, out)
	require.NoError(t, err)
	require.Equal(t, "pong", string(out[:n]))

	require.ErrorIs(t, journal.Sync(ctx, make([]alarm.Entry, 5)), errTooManyEntries)
}
