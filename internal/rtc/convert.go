package rtc

import (
	"errors"
	"fmt"
	"time"
)

const (
	// YearOffset is the year the device's two-digit year counts from.
	YearOffset = 2000

	// MinUnixTime is 2000-03-01T00:00:00Z, the first instant the device
	// calendar is handled for.
	MinUnixTime uint32 = 951868800
	// MaxUnixTime is the last second of 2099.
	MaxUnixTime uint32 = 4102444799
)

var (
	// ErrOutOfRange is returned for instants the device cannot represent.
	ErrOutOfRange = errors.New("time outside RTC range")
	// ErrInvalidDateTime is returned for register contents that do not form a date.
	ErrInvalidDateTime = errors.New("invalid RTC date/time")
)

// UnixToDateTime converts Unix seconds to the device representation.
func UnixToDateTime(ts uint32) (DateTime, error) {
	if ts < MinUnixTime || ts > MaxUnixTime {
		return DateTime{}, fmt.Errorf("%w: %d", ErrOutOfRange, ts)
	}

	t := time.Unix(int64(ts), 0).UTC()

	return DateTime{
		Date: Date{
			Date:  uint8(t.Day()),
			Month: uint8(t.Month()),
			Year:  uint8(t.Year() - YearOffset),
		},
		Time: Time{
			Hours:   uint8(t.Hour()),
			Minutes: uint8(t.Minute()),
			Seconds: uint8(t.Second()),
		},
	}, nil
}

// DateTimeToUnix converts the device representation to Unix seconds.
func DateTimeToUnix(dt DateTime) (uint32, error) {
	if dt.Month < 1 || dt.Month > 12 || dt.Date.Date < 1 || dt.Year > 99 ||
		dt.Hours > 23 || dt.Minutes > 59 || dt.Seconds > 59 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDateTime, dt)
	}

	t := time.Date(YearOffset+int(dt.Year), time.Month(dt.Month), int(dt.Date.Date),
		int(dt.Hours), int(dt.Minutes), int(dt.Seconds), 0, time.UTC)

	// time.Date normalizes overflowing days (Feb 30 -> Mar 2).
	if t.Day() != int(dt.Date.Date) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDateTime, dt)
	}

	ts := t.Unix()
	if ts < int64(MinUnixTime) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, dt)
	}

	return uint32(ts), nil
}
