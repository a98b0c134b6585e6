package ds3232

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/obc-alarm/internal/rtc"
)

var errBus = errors.New("bus error")

// fakeBus emulates the DS3232 register file with an auto-incrementing pointer.
type fakeBus struct {
	mu   sync.Mutex
	regs [0x14]byte
	fail bool
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail || addr != Address {
		return errBus
	}

	if len(w) == 0 {
		return nil
	}

	ptr := int(w[0])
	for _, v := range w[1:] {
		b.regs[ptr%len(b.regs)] = v
		ptr++
	}

	for i := range r {
		r[i] = b.regs[ptr%len(b.regs)]
		ptr++
	}

	return nil
}

func (b *fakeBus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{reg}, buf)
}

func (b *fakeBus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}

func (b *fakeBus) reg(i int) byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.regs[i]
}

func (b *fakeBus) set(i int, v byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.regs[i] = v
}

// TestSetAlarm1_Encoding checks BCD values and mask bits for each mode.
func TestSetAlarm1_Encoding(t *testing.T) {
	t.Parallel()

	bus := new(fakeBus)
	d := New(bus)

	at := rtc.AlarmTime{Date: 31, Time: rtc.Time{Hours: 23, Minutes: 59, Seconds: 58}}

	require.NoError(t, d.SetAlarm1(context.Background(), rtc.Alarm1MatchDateHoursMinutesSeconds, at))
	require.Equal(t, byte(0x58), bus.reg(0x07))
	require.Equal(t, byte(0x59), bus.reg(0x08))
	require.Equal(t, byte(0x23), bus.reg(0x09))
	require.Equal(t, byte(0x31), bus.reg(0x0A))

	require.NoError(t, d.SetAlarm1(context.Background(), rtc.Alarm1MatchMinutesSeconds, at))
	require.Equal(t, byte(0x58), bus.reg(0x07))
	require.Equal(t, byte(0x59), bus.reg(0x08))
	require.Equal(t, byte(0x80|0x23), bus.reg(0x09))
	require.Equal(t, byte(0x80|0x31), bus.reg(0x0A))
}

// TestConfigureAndClearFlag checks control bits and the flag read-modify-write.
func TestConfigureAndClearFlag(t *testing.T) {
	t.Parallel()

	bus := new(fakeBus)
	d := New(bus)

	bus.set(0x0E, 0x18)
	require.NoError(t, d.Configure())
	require.Equal(t, byte(0x18|0x05), bus.reg(0x0E))

	bus.set(0x0F, 0x8B)

	fired, err := d.Alarm1Fired()
	require.NoError(t, err)
	require.True(t, fired)

	require.NoError(t, d.ClearAlarm1Flag(context.Background()))
	require.Equal(t, byte(0x8A), bus.reg(0x0F))

	bus.fail = true
	require.ErrorIs(t, d.ClearAlarm1Flag(context.Background()), errBus)
}

// TestCurrentDateTime decodes the timekeeping registers.
func TestCurrentDateTime(t *testing.T) {
	t.Parallel()

	bus := new(fakeBus)
	for i, v := range []byte{0x20, 0x13, 0x22, 0x03, 0x14, 0x91, 0x23} {
		bus.set(i, v)
	}

	dt, err := New(bus).CurrentDateTime(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2023-11-14T22:13:20Z", dt.String())

	bus.set(2, 0x40|0x10)

	_, err = New(bus).CurrentDateTime(context.Background())
	require.ErrorIs(t, err, rtc.ErrInvalidDateTime)
}

// TestPollInterrupt raises one edge per flag transition.
func TestPollInterrupt(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		bus := new(fakeBus)
		d := New(bus)

		var edges atomic.Int32

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() {
			done <- d.PollInterrupt(ctx, 10*time.Millisecond, func() { edges.Add(1) })
		}()

		bus.set(0x0F, statusA1F)
		time.Sleep(55 * time.Millisecond)
		require.Equal(t, int32(1), edges.Load())

		bus.set(0x0F, 0)
		time.Sleep(20 * time.Millisecond)
		bus.set(0x0F, statusA1F)
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, int32(2), edges.Load())

		cancel()
		require.NoError(t, <-done)
	})
}

// TestSetDateTime writes BCD time and date and reads them back.
func TestSetDateTime(t *testing.T) {
	t.Parallel()

	bus := new(fakeBus)
	d := New(bus)

	bus.set(3, 0x05)

	dt, err := rtc.UnixToDateTime(1700000000)
	require.NoError(t, err)
	require.NoError(t, d.SetDateTime(context.Background(), dt))
	require.Equal(t, byte(0x05), bus.reg(3))

	got, err := d.CurrentDateTime(context.Background())
	require.NoError(t, err)
	require.Equal(t, dt, got)
}
