package simrtc

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/obc-alarm/internal/clock"
	"github.com/oshokin/obc-alarm/internal/rtc"
)

const base uint32 = 1_700_000_000

func alarmAt(t *testing.T, ts uint32) rtc.AlarmTime {
	t.Helper()

	dt, err := rtc.UnixToDateTime(ts)
	require.NoError(t, err)

	return rtc.AlarmTimeOf(dt)
}

// TestDevice_EdgeOnMatch verifies one edge per flag transition and the sticky flag.
func TestDevice_EdgeOnMatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := clock.NewManual(base)
	d := New(c)

	var edges atomic.Int32

	d.ConnectInterrupt(func() { edges.Add(1) })

	_, _, err := d.Alarm1()
	require.ErrorIs(t, err, ErrNotArmed)

	require.NoError(t, d.SetAlarm1(ctx, rtc.Alarm1MatchDateHoursMinutesSeconds, alarmAt(t, base+5)))

	c.Advance(4)
	d.Step()
	require.Zero(t, edges.Load())

	c.Advance(3)
	d.Step()
	require.Equal(t, int32(1), edges.Load())
	require.True(t, d.Flag())

	// Matching again while the flag is set raises nothing.
	require.NoError(t, d.SetAlarm1(ctx, rtc.Alarm1OncePerSecond, rtc.AlarmTime{}))
	c.Advance(1)
	d.Step()
	require.Equal(t, int32(1), edges.Load())

	require.NoError(t, d.ClearAlarm1Flag(ctx))
	c.Advance(1)
	d.Step()
	require.Equal(t, int32(2), edges.Load())
}

// TestDevice_StaleAlarmDoesNotFire shows a match pattern in the past stays silent.
func TestDevice_StaleAlarmDoesNotFire(t *testing.T) {
	t.Parallel()

	c := clock.NewManual(base)
	d := New(c)

	var edges atomic.Int32

	d.ConnectInterrupt(func() { edges.Add(1) })

	require.NoError(t, d.SetAlarm1(context.Background(), rtc.Alarm1MatchDateHoursMinutesSeconds, alarmAt(t, base-10)))

	for range 30 {
		c.Advance(1)
		d.Step()
	}

	require.Zero(t, edges.Load())

	mode, at, err := d.Alarm1()
	require.NoError(t, err)
	require.Equal(t, rtc.Alarm1MatchDateHoursMinutesSeconds, mode)
	require.Equal(t, alarmAt(t, base-10), at)
}

// TestDevice_CurrentDateTime reports the clock in device format.
func TestDevice_CurrentDateTime(t *testing.T) {
	t.Parallel()

	d := New(clock.NewManual(base))

	dt, err := d.CurrentDateTime(context.Background())
	require.NoError(t, err)

	back, err := rtc.DateTimeToUnix(dt)
	require.NoError(t, err)
	require.Equal(t, base, back)
}
