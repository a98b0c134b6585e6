package commands

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/oshokin/obc-alarm/internal/domain/command"
	"github.com/oshokin/obc-alarm/internal/logger"
	"github.com/oshokin/obc-alarm/internal/rtc"
)

var (
	// errBadParams is returned when a command carries the wrong parameter block.
	errBadParams = errors.New("invalid command parameters")
	// errUnsupported is returned by commands this target cannot execute.
	errUnsupported = errors.New("command not supported on this target")
	// errNoResetHook is returned when exec_obc_reset has nothing to call.
	errNoResetHook = errors.New("no reset hook configured")
)

// telemetrySize is the downlink_telem payload: unix time, pending alarms, capacity.
const telemetrySize = 6

// logLevels maps the downlink_logs_next_pass parameter to a log level.
//
//nolint:gochecknoglobals // Read-only lookup table.
var logLevels = [...]zapcore.Level{
	zapcore.DebugLevel,
	zapcore.InfoLevel,
	zapcore.WarnLevel,
	zapcore.ErrorLevel,
}

// dispatchTable returns the callback of every command. end_of_frame only
// terminates an uplink batch and has none.
func (m *Manager) dispatchTable() [command.DownlinkTelem + 1]command.Callback {
	return [...]command.Callback{
		command.EndOfFrame:           nil,
		command.ExecOBCReset:         m.execOBCReset,
		command.RTCSync:              m.rtcSync,
		command.DownlinkLogsNextPass: downlinkLogsNextPass,
		command.MicroSDFormat:        microSDFormat,
		command.Ping:                 m.ping,
		command.DownlinkTelem:        m.downlinkTelem,
	}
}

func (m *Manager) execOBCReset(ctx context.Context, _ *command.Message, _ []byte) (int, error) {
	if m.reset == nil {
		return 0, errNoResetHook
	}

	logger.Warn(ctx, "Executing OBC reset command")

	return 0, m.reset(ctx)
}

// rtcSync sets the RTC calendar and the software clock from a big-endian
// Unix time.
func (m *Manager) rtcSync(ctx context.Context, msg *command.Message, _ []byte) (int, error) {
	if len(msg.Params) != 4 {
		return 0, fmt.Errorf("%w: rtc_sync wants 4 bytes, got %d", errBadParams, len(msg.Params))
	}

	unix := binary.BigEndian.Uint32(msg.Params)

	dt, err := rtc.UnixToDateTime(unix)
	if err != nil {
		return 0, fmt.Errorf("convert sync time: %w", err)
	}

	if m.rtc != nil {
		if err = m.rtc.SetDateTime(ctx, dt); err != nil {
			return 0, fmt.Errorf("set rtc: %w", err)
		}
	}

	previous := m.clock.Now()
	m.clock.Set(unix)

	logger.InfoKV(ctx, "Clock synchronised", "previous", previous, "now", unix, "date_time", dt.String())

	return 0, nil
}

func downlinkLogsNextPass(ctx context.Context, msg *command.Message, _ []byte) (int, error) {
	if len(msg.Params) != 1 || int(msg.Params[0]) >= len(logLevels) {
		return 0, fmt.Errorf("%w: downlink_logs_next_pass wants a level 0-%d", errBadParams, len(logLevels)-1)
	}

	level := logLevels[msg.Params[0]]
	logger.SetLevel(level)
	logger.InfoKV(ctx, "Log level changed", "level", level.String())

	return 0, nil
}

func microSDFormat(context.Context, *command.Message, []byte) (int, error) {
	return 0, errUnsupported
}

// ping answers with the current Unix time.
func (m *Manager) ping(_ context.Context, _ *command.Message, out []byte) (int, error) {
	if len(out) < 4 {
		return 0, command.ErrShortFrame
	}

	binary.BigEndian.PutUint32(out, m.clock.Now())

	return 4, nil
}

// downlinkTelem reports the clock and the alarm queue occupancy.
func (m *Manager) downlinkTelem(_ context.Context, _ *command.Message, out []byte) (int, error) {
	if len(out) < telemetrySize {
		return 0, command.ErrShortFrame
	}

	binary.BigEndian.PutUint32(out, m.clock.Now())
	out[4] = byte(m.scheduler.PendingCount())
	out[5] = byte(m.scheduler.Capacity())

	return telemetrySize, nil
}
