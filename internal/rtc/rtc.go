package rtc

import (
	"context"
	"fmt"
)

// AlarmMode selects which alarm fields the device compares against its clock.
// Values are the A1M4..A1M1 mask bits of the DS3232 alarm 1 registers.
type AlarmMode uint8

// Alarm 1 modes.
const (
	Alarm1OncePerSecond                AlarmMode = 0x0F
	Alarm1MatchSeconds                 AlarmMode = 0x0E
	Alarm1MatchMinutesSeconds          AlarmMode = 0x0C
	Alarm1MatchHoursMinutesSeconds     AlarmMode = 0x08
	Alarm1MatchDateHoursMinutesSeconds AlarmMode = 0x00
)

// String returns a readable mode name.
func (m AlarmMode) String() string {
	switch m {
	case Alarm1OncePerSecond:
		return "once_per_second"
	case Alarm1MatchSeconds:
		return "match_seconds"
	case Alarm1MatchMinutesSeconds:
		return "match_minutes_seconds"
	case Alarm1MatchHoursMinutesSeconds:
		return "match_hours_minutes_seconds"
	case Alarm1MatchDateHoursMinutesSeconds:
		return "match_date_hours_minutes_seconds"
	default:
		return fmt.Sprintf("mode(%#x)", uint8(m))
	}
}

// Time is a time of day.
type Time struct {
	Hours   uint8
	Minutes uint8
	Seconds uint8
}

// Date is a calendar date. Year is the offset from YearOffset (0-99).
type Date struct {
	Date  uint8
	Month uint8
	Year  uint8
}

// DateTime is the device representation of an instant.
type DateTime struct {
	Date
	Time
}

// String formats the instant as an ISO 8601 UTC timestamp.
func (dt DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ",
		YearOffset+int(dt.Year), dt.Month, dt.Date.Date, dt.Hours, dt.Minutes, dt.Seconds)
}

// AlarmTime is the content of the alarm 1 register.
type AlarmTime struct {
	// Date is the day of month (1-31).
	Date uint8
	Time
}

// AlarmTimeOf extracts the alarm register fields from an instant.
func AlarmTimeOf(dt DateTime) AlarmTime {
	return AlarmTime{
		Date: dt.Date.Date,
		Time: dt.Time,
	}
}

// Matches reports whether the device clock at dt satisfies the alarm in mode.
func (a AlarmTime) Matches(mode AlarmMode, dt DateTime) bool {
	switch mode {
	case Alarm1OncePerSecond:
		return true
	case Alarm1MatchSeconds:
		return a.Seconds == dt.Seconds
	case Alarm1MatchMinutesSeconds:
		return a.Seconds == dt.Seconds && a.Minutes == dt.Minutes
	case Alarm1MatchHoursMinutesSeconds:
		return a.Seconds == dt.Seconds && a.Minutes == dt.Minutes && a.Hours == dt.Hours
	case Alarm1MatchDateHoursMinutesSeconds:
		return a.Time == dt.Time && a.Date == dt.Date.Date
	default:
		return false
	}
}

// RTC is the alarm interface of the real-time clock.
type RTC interface {
	// SetAlarm1 programs the single alarm-match register.
	SetAlarm1(ctx context.Context, mode AlarmMode, at AlarmTime) error
	// ClearAlarm1Flag resets the sticky alarm-fired flag.
	ClearAlarm1Flag(ctx context.Context) error
}

// Clock is implemented by devices that can report their current time.
type Clock interface {
	CurrentDateTime(ctx context.Context) (DateTime, error)
}

// ClockSetter is implemented by devices whose calendar can be written.
type ClockSetter interface {
	SetDateTime(ctx context.Context, dt DateTime) error
}
