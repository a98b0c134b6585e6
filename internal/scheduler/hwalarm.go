package scheduler

import (
	"context"
	"fmt"

	"github.com/oshokin/obc-alarm/internal/domain/alarm"
	"github.com/oshokin/obc-alarm/internal/rtc"
)

// HardwareAlarm keeps the RTC alarm-match register pointed at the earliest
// queued entry. It only translates and forwards; the scheduler decides when.
type HardwareAlarm struct {
	// device is the RTC collaborator.
	device rtc.RTC
	// armedAt shadows the last trigger time written to the register.
	armedAt uint32
	// armed is false until the first successful write.
	armed bool
}

// NewHardwareAlarm wraps device.
func NewHardwareAlarm(device rtc.RTC) *HardwareAlarm {
	return &HardwareAlarm{device: device}
}

// SyncToEarliest programs the register to match e's trigger time on date,
// hours, minutes and seconds.
func (h *HardwareAlarm) SyncToEarliest(ctx context.Context, e *alarm.Entry) error {
	dt, err := rtc.UnixToDateTime(e.TriggerTime)
	if err != nil {
		return fmt.Errorf("convert trigger time: %w", err)
	}

	err = h.device.SetAlarm1(ctx, rtc.Alarm1MatchDateHoursMinutesSeconds, rtc.AlarmTimeOf(dt))
	if err != nil {
		return fmt.Errorf("set alarm 1: %w", err)
	}

	h.armedAt = e.TriggerTime
	h.armed = true

	return nil
}

// Acknowledge clears the sticky alarm-fired flag.
func (h *HardwareAlarm) Acknowledge(ctx context.Context) error {
	if err := h.device.ClearAlarm1Flag(ctx); err != nil {
		return fmt.Errorf("clear alarm 1 flag: %w", err)
	}

	return nil
}

// Armed returns the trigger time the register was last programmed with.
// The register keeps that value after the queue empties.
func (h *HardwareAlarm) Armed() (uint32, bool) {
	return h.armedAt, h.armed
}
