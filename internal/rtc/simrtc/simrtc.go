// Package simrtc is an in-process real-time clock with DS3232 alarm 1
// semantics: one match register, a sticky alarm flag, and an interrupt edge
// raised when the flag goes from clear to set.
//
// The device time is taken from a clock.Clock, which lets the daemon run on
// a workstation and lets tests drive alarms deterministically.
package simrtc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oshokin/obc-alarm/internal/clock"
	"github.com/oshokin/obc-alarm/internal/rtc"
)

// maxCatchUp bounds how many elapsed seconds a single Step evaluates after a
// clock jump.
const maxCatchUp = 3600

// ErrNotArmed is returned by Alarm1 when no alarm was ever programmed.
var ErrNotArmed = errors.New("alarm 1 not programmed")

// Device is a simulated RTC.
type Device struct {
	// clock supplies the device time.
	clock clock.Clock

	// mu guards every field below.
	mu sync.Mutex
	// mode is the alarm 1 match mask.
	mode rtc.AlarmMode
	// alarm is the alarm 1 register.
	alarm rtc.AlarmTime
	// armed reports whether alarm 1 was programmed.
	armed bool
	// flag is the sticky A1F status bit.
	flag bool
	// lastChecked is the last second evaluated by Step.
	lastChecked uint32
	// onEdge is the interrupt line.
	onEdge func()
}

var (
	_ rtc.RTC   = (*Device)(nil)
	_ rtc.Clock = (*Device)(nil)
)

// New creates a device reading time from c.
func New(c clock.Clock) *Device {
	return &Device{
		clock:       c,
		lastChecked: c.Now(),
	}
}

// ConnectInterrupt wires the alarm interrupt line to onEdge.
func (d *Device) ConnectInterrupt(onEdge func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.onEdge = onEdge
}

// SetAlarm1 implements rtc.RTC.
func (d *Device) SetAlarm1(_ context.Context, mode rtc.AlarmMode, at rtc.AlarmTime) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mode = mode
	d.alarm = at
	d.armed = true

	return nil
}

// ClearAlarm1Flag implements rtc.RTC.
func (d *Device) ClearAlarm1Flag(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.flag = false

	return nil
}

// CurrentDateTime implements rtc.Clock.
func (d *Device) CurrentDateTime(context.Context) (rtc.DateTime, error) {
	return rtc.UnixToDateTime(d.clock.Now())
}

// Alarm1 returns the programmed alarm register.
func (d *Device) Alarm1() (rtc.AlarmMode, rtc.AlarmTime, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.armed {
		return 0, rtc.AlarmTime{}, ErrNotArmed
	}

	return d.mode, d.alarm, nil
}

// Flag reports the state of the alarm-fired flag.
func (d *Device) Flag() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.flag
}

// Step evaluates every second elapsed since the previous call and raises the
// interrupt line when the alarm matches while the flag is clear.
func (d *Device) Step() {
	now := d.clock.Now()

	d.mu.Lock()

	from := d.lastChecked
	if now < from || now-from > maxCatchUp {
		from = now - 1
	}

	d.lastChecked = now

	fired := false

	for s := from + 1; s <= now && s > from; s++ {
		if !d.armed || d.flag {
			break
		}

		dt, err := rtc.UnixToDateTime(s)
		if err != nil {
			continue
		}

		if d.alarm.Matches(d.mode, dt) {
			d.flag = true
			fired = true
		}
	}

	onEdge := d.onEdge
	d.mu.Unlock()

	if fired && onEdge != nil {
		onEdge()
	}
}

// Run calls Step every interval until ctx is canceled.
func (d *Device) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Step()
		}
	}
}
