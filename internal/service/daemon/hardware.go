package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/obc-alarm/internal/clock"
	"github.com/oshokin/obc-alarm/internal/config"
	"github.com/oshokin/obc-alarm/internal/logger"
	"github.com/oshokin/obc-alarm/internal/rtc"
	"github.com/oshokin/obc-alarm/internal/rtc/simrtc"
)

// errUnsupportedRTC is returned for an RTC driver this build cannot open.
var errUnsupportedRTC = errors.New("unsupported rtc driver")

// hardware bundles the RTC and the software clock synchronised from it.
type hardware struct {
	// device is the alarm register.
	device rtc.RTC
	// calendar reads the RTC time for clock discipline.
	calendar rtc.Clock
	// setter writes the RTC calendar on rtc_sync. Nil for the simulator.
	setter rtc.ClockSetter
	// timekeeper is the software clock.
	timekeeper *clock.Timekeeper
	// interrupts drives onEdge from the alarm line until ctx is canceled.
	interrupts func(ctx context.Context, onEdge func()) error
	// close releases the bus.
	close func() error
}

// openHardware opens the configured RTC and starts the software clock at the
// RTC time.
func openHardware(ctx context.Context, settings *config.RTC) (*hardware, error) {
	switch settings.Driver {
	case config.RTCSimulated:
		return openSimulated(ctx, settings.PollInterval), nil
	case config.RTCDS3232:
		return openDS3232(ctx, settings.I2CDevice, settings.PollInterval)
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedRTC, settings.Driver)
	}
}

// openSimulated builds an in-process RTC that follows the software clock,
// which itself starts from the host time.
func openSimulated(ctx context.Context, interval time.Duration) *hardware {
	timekeeper := clock.NewTimekeeper(clock.FromTime(time.Now()))
	device := simrtc.New(timekeeper)

	logger.InfoKV(ctx, "Using simulated RTC", "unix_time", timekeeper.Now())

	return &hardware{
		device:     device,
		calendar:   device,
		timekeeper: timekeeper,
		interrupts: func(ctx context.Context, onEdge func()) error {
			device.ConnectInterrupt(onEdge)

			return device.Run(ctx, interval)
		},
		close: func() error { return nil },
	}
}

// bootTime reads the RTC calendar as Unix time.
func bootTime(ctx context.Context, calendar rtc.Clock) (uint32, error) {
	dt, err := calendar.CurrentDateTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("read rtc: %w", err)
	}

	unix, err := rtc.DateTimeToUnix(dt)
	if err != nil {
		return 0, fmt.Errorf("convert rtc time %s: %w", dt, err)
	}

	return unix, nil
}
