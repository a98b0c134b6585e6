//go:build linux

package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/obc-alarm/internal/clock"
	"github.com/oshokin/obc-alarm/internal/logger"
	"github.com/oshokin/obc-alarm/internal/rtc/ds3232"
	"github.com/oshokin/obc-alarm/internal/rtc/i2cdev"
)

// openDS3232 opens a DS3232 on the i2c-dev node at path.
func openDS3232(ctx context.Context, path string, interval time.Duration) (*hardware, error) {
	bus, err := i2cdev.Open(path)
	if err != nil {
		return nil, err
	}

	device := ds3232.New(bus)

	if err = device.Configure(); err != nil {
		return nil, errors.Join(fmt.Errorf("configure ds3232: %w", err), bus.Close())
	}

	start, err := bootTime(ctx, device)
	if err != nil {
		return nil, errors.Join(err, bus.Close())
	}

	logger.InfoKV(ctx, "Using DS3232 RTC", "i2c_device", path, "unix_time", start)

	return &hardware{
		device:     device,
		calendar:   device,
		setter:     device,
		timekeeper: clock.NewTimekeeper(start),
		interrupts: func(ctx context.Context, onEdge func()) error {
			return device.PollInterrupt(ctx, interval, onEdge)
		},
		close: bus.Close,
	}, nil
}
