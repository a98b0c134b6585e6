package housekeeping

import (
	"context"
	"fmt"

	"github.com/oshokin/obc-alarm/internal/clock"
	"github.com/oshokin/obc-alarm/internal/logger"
	"github.com/oshokin/obc-alarm/internal/rtc"
)

// Names of the built-in jobs accepted in the configuration.
const (
	JobHeartbeat       = "heartbeat"
	JobClockDiscipline = "clock_discipline"
)

// Heartbeat logs the clock and the number of pending alarms.
func Heartbeat(c clock.Clock, pending func() int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.InfoKV(ctx, "Heartbeat", "unix_time", c.Now(), "pending_alarms", pending())

		return nil
	}
}

// ClockDiscipline re-synchronises the software clock from the RTC when the
// two differ by more than tolerance seconds.
func ClockDiscipline(device rtc.Clock, c clock.Setter, tolerance uint32) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		dt, err := device.CurrentDateTime(ctx)
		if err != nil {
			return fmt.Errorf("read rtc: %w", err)
		}

		hardware, err := rtc.DateTimeToUnix(dt)
		if err != nil {
			return fmt.Errorf("convert rtc time: %w", err)
		}

		software := c.Now()

		drift := int64(hardware) - int64(software)
		if drift < 0 {
			drift = -drift
		}

		if drift <= int64(tolerance) {
			return nil
		}

		c.Set(hardware)
		logger.WarnKV(ctx, "Software clock re-synchronised from RTC",
			"software", software,
			"hardware", hardware,
			"drift_s", drift)

		return nil
	}
}
