package scheduler

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/obc-alarm/internal/domain/alarm"
)

func noop(context.Context) error { return nil }

func entryAt(trigger uint32, name string) alarm.Entry {
	return alarm.NewDefault(trigger, name, noop)
}

func actionName(e *alarm.Entry) string {
	return e.Action.(alarm.DefaultAction).Name //nolint:forcetypeassert // Tests only build default entries.
}

func names(entries []alarm.Entry) []string {
	out := make([]string, 0, len(entries))
	for i := range entries {
		out = append(out, actionName(&entries[i]))
	}

	return out
}

// TestQueue_SortedWithFIFOTies checks ordering over random insertions.
func TestQueue_SortedWithFIFOTies(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	q := NewQueue(MaxQueueCapacity)

	seq := make(map[string]int)

	for i := range MaxQueueCapacity {
		name := string(rune('a' + i))
		seq[name] = i

		_, err := q.Enqueue(entryAt(100+rng.Uint32N(5), name))
		require.NoError(t, err)
	}

	entries := q.Entries()
	require.Len(t, entries, MaxQueueCapacity)

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		require.LessOrEqual(t, prev.TriggerTime, cur.TriggerTime)

		if prev.TriggerTime == cur.TriggerTime {
			require.Less(t, seq[actionName(&prev)], seq[actionName(&cur)])
		}
	}
}

// TestQueue_EnqueueIndex reports where each entry landed.
func TestQueue_EnqueueIndex(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)

	cases := []struct {
		trigger uint32
		name    string
		index   int
	}{
		{trigger: 200, name: "first", index: 0},
		{trigger: 300, name: "later", index: 1},
		{trigger: 100, name: "earlier", index: 0},
		{trigger: 100, name: "tie", index: 1},
	}

	for _, tc := range cases {
		idx, err := q.Enqueue(entryAt(tc.trigger, tc.name))
		require.NoError(t, err)
		require.Equal(t, tc.index, idx, tc.name)
	}

	require.Equal(t, []string{"earlier", "tie", "first", "later"}, names(q.Entries()))
}

// TestQueue_FullIsUnchanged rejects the extra entry and keeps the contents.
func TestQueue_FullIsUnchanged(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)

	_, err := q.Enqueue(entryAt(200, "a"))
	require.NoError(t, err)
	_, err = q.Enqueue(entryAt(300, "b"))
	require.NoError(t, err)

	before := q.Entries()

	_, err = q.Enqueue(entryAt(100, "c"))
	require.ErrorIs(t, err, ErrQueueFull)
	require.Equal(t, 2, q.Len())
	require.Equal(t, before, q.Entries())
}

// TestQueue_DequeuePeek never returns a removed entry.
func TestQueue_DequeuePeek(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)

	_, err := q.PeekEarliest()
	require.ErrorIs(t, err, ErrQueueEmpty)

	_, err = q.DequeueEarliest()
	require.ErrorIs(t, err, ErrQueueEmpty)

	for i, name := range []string{"a", "b", "c"} {
		_, err = q.Enqueue(entryAt(uint32(10*(i+1)), name))
		require.NoError(t, err)
	}

	removed, err := q.DequeueEarliest()
	require.NoError(t, err)
	require.Equal(t, "a", actionName(&removed))

	head, err := q.PeekEarliest()
	require.NoError(t, err)
	require.NotEqual(t, removed.ID, head.ID)
	require.Equal(t, "b", actionName(head))
	require.Equal(t, 2, q.Len())
	require.Equal(t, 3, q.Cap())
}
