// Package ds3232 drives the alarm 1 and timekeeping registers of a Maxim
// DS3232 real-time clock over an I2C bus.
package ds3232

import (
	"context"
	"fmt"
	"time"

	"tinygo.org/x/drivers"

	"github.com/oshokin/obc-alarm/internal/rtc"
)

// Address is the fixed I2C address of the DS3232.
const Address = 0x68

// Register map.
const (
	regSeconds        = 0x00
	regDate           = 0x04
	regAlarm1Seconds  = 0x07
	regControl        = 0x0E
	regStatus         = 0x0F
	timekeepingLength = 7
)

// Control and status bits.
const (
	controlA1IE  = 1 << 0
	controlINTCN = 1 << 2
	statusA1F    = 1 << 0

	alarmMaskBit = 1 << 7
	hours12Bit   = 1 << 6
	monthMask    = 0x1F
	hoursMask    = 0x3F
)

// Device is a DS3232 on an I2C bus.
type Device struct {
	// bus carries register transactions.
	bus drivers.I2C
	// address is the 7-bit device address.
	address uint16
}

var (
	_ rtc.RTC         = (*Device)(nil)
	_ rtc.Clock       = (*Device)(nil)
	_ rtc.ClockSetter = (*Device)(nil)
)

// New returns a driver for the device at Address on bus.
func New(bus drivers.I2C) *Device {
	return &Device{
		bus:     bus,
		address: Address,
	}
}

// Configure routes alarm 1 to the INT/SQW pin.
func (d *Device) Configure() error {
	control, err := d.readRegister(regControl)
	if err != nil {
		return fmt.Errorf("read control: %w", err)
	}

	control |= controlINTCN | controlA1IE
	if err = d.writeRegisters(regControl, control); err != nil {
		return fmt.Errorf("write control: %w", err)
	}

	return nil
}

// SetAlarm1 implements rtc.RTC. Mode bits A1M1..A1M4 go into bit 7 of the
// four alarm registers; DY/DT stays clear so the last field is a date.
func (d *Device) SetAlarm1(_ context.Context, mode rtc.AlarmMode, at rtc.AlarmTime) error {
	regs := [4]byte{
		toBCD(at.Seconds),
		toBCD(at.Minutes),
		toBCD(at.Hours),
		toBCD(at.Date),
	}

	for i := range regs {
		if mode&(1<<i) != 0 {
			regs[i] |= alarmMaskBit
		}
	}

	if err := d.writeRegisters(regAlarm1Seconds, regs[:]...); err != nil {
		return fmt.Errorf("write alarm 1: %w", err)
	}

	return nil
}

// ClearAlarm1Flag implements rtc.RTC.
func (d *Device) ClearAlarm1Flag(context.Context) error {
	status, err := d.readRegister(regStatus)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	if err = d.writeRegisters(regStatus, status&^statusA1F); err != nil {
		return fmt.Errorf("write status: %w", err)
	}

	return nil
}

// Alarm1Fired reports the A1F flag.
func (d *Device) Alarm1Fired() (bool, error) {
	status, err := d.readRegister(regStatus)
	if err != nil {
		return false, fmt.Errorf("read status: %w", err)
	}

	return status&statusA1F != 0, nil
}

// CurrentDateTime implements rtc.Clock.
func (d *Device) CurrentDateTime(context.Context) (rtc.DateTime, error) {
	var regs [timekeepingLength]byte
	if err := d.bus.Tx(d.address, []byte{regSeconds}, regs[:]); err != nil {
		return rtc.DateTime{}, fmt.Errorf("read timekeeping: %w", err)
	}

	if regs[2]&hours12Bit != 0 {
		return rtc.DateTime{}, fmt.Errorf("%w: 12-hour mode", rtc.ErrInvalidDateTime)
	}

	return rtc.DateTime{
		Date: rtc.Date{
			Date:  fromBCD(regs[4]),
			Month: fromBCD(regs[5] & monthMask),
			Year:  fromBCD(regs[6]),
		},
		Time: rtc.Time{
			Hours:   fromBCD(regs[2] & hoursMask),
			Minutes: fromBCD(regs[1]),
			Seconds: fromBCD(regs[0]),
		},
	}, nil
}

// SetDateTime implements rtc.ClockSetter. The day-of-week register is left
// unchanged and the clock runs in 24-hour mode.
func (d *Device) SetDateTime(_ context.Context, dt rtc.DateTime) error {
	if err := d.writeRegisters(regSeconds,
		toBCD(dt.Seconds),
		toBCD(dt.Minutes),
		toBCD(dt.Hours),
	); err != nil {
		return fmt.Errorf("write time: %w", err)
	}

	if err := d.writeRegisters(regDate,
		toBCD(dt.Date.Date),
		toBCD(dt.Month),
		toBCD(dt.Year),
	); err != nil {
		return fmt.Errorf("write date: %w", err)
	}

	return nil
}

// PollInterrupt emulates the INT pin on hosts without a GPIO interrupt: it
// samples A1F every interval and calls onEdge when the flag becomes set.
func (d *Device) PollInterrupt(ctx context.Context, interval time.Duration, onEdge func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wasSet bool

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			set, err := d.Alarm1Fired()
			if err != nil {
				return err
			}

			if set && !wasSet {
				onEdge()
			}

			wasSet = set
		}
	}
}

func (d *Device) readRegister(reg byte) (byte, error) {
	var value [1]byte
	if err := d.bus.Tx(d.address, []byte{reg}, value[:]); err != nil {
		return 0, err
	}

	return value[0], nil
}

func (d *Device) writeRegisters(reg byte, values ...byte) error {
	buf := make([]byte, 0, 1+len(values))
	buf = append(buf, reg)
	buf = append(buf, values...)

	return d.bus.Tx(d.address, buf, nil)
}

func toBCD(v uint8) byte {
	return (v/10)<<4 | v%10
}

func fromBCD(b byte) uint8 {
	return (b>>4)*10 + b&0x0F
}
