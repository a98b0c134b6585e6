package ground

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/obc-alarm/internal/clock"
	"github.com/oshokin/obc-alarm/internal/domain/command"
)

var (
	// errConflictingTimeTags is returned when both an absolute and a relative time tag are given.
	errConflictingTimeTags = errors.New("use either --at or --in, not both")
	// errInvalidTimeTag is returned for time tags that are neither RFC 3339 nor Unix seconds.
	errInvalidTimeTag = errors.New("time tag must be RFC 3339 or Unix seconds")
)

// CommandInput is a command as typed by an operator.
type CommandInput struct {
	// Name is the command name, for example "ping".
	Name string
	// Params is the hex-encoded parameter block.
	Params string
	// At is an absolute execution time, RFC 3339 or Unix seconds.
	At string
	// In is an execution delay relative to now.
	In time.Duration
}

// BuildMessage turns input into a command message. now is the ground time
// used for relative time tags and for an rtc_sync without parameters.
func BuildMessage(input *CommandInput, now time.Time) (command.Message, error) {
	id, err := command.ParseID(strings.TrimSpace(input.Name))
	if err != nil {
		return command.Message{}, err
	}

	msg := command.Message{ID: id}

	params := strings.TrimSpace(input.Params)

	switch {
	case params != "":
		msg.Params, err = hex.DecodeString(strings.TrimPrefix(params, "0x"))
		if err != nil {
			return command.Message{}, fmt.Errorf("decode params: %w", err)
		}
	case id == command.RTCSync:
		// Sync the onboard clock to the ground clock.
		msg.Params = binary.BigEndian.AppendUint32(nil, clock.FromTime(now))
	}

	switch {
	case input.At != "" && input.In != 0:
		return command.Message{}, errConflictingTimeTags
	case input.At != "":
		msg.Timestamp, err = parseTimeTag(input.At)
		if err != nil {
			return command.Message{}, err
		}

		msg.IsTimeTagged = true
	case input.In != 0:
		msg.Timestamp = clock.FromTime(now.Add(input.In))
		msg.IsTimeTagged = true
	}

	if err = msg.Validate(); err != nil {
		return command.Message{}, err
	}

	return msg, nil
}

// parseTimeTag accepts RFC 3339 or decimal Unix seconds.
func parseTimeTag(value string) (uint32, error) {
	value = strings.TrimSpace(value)

	if unix, err := strconv.ParseUint(value, 10, 32); err == nil {
		return uint32(unix), nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidTimeTag, value)
	}

	return clock.FromTime(t), nil
}

// FormatResponse renders a downlinked response as one line.
func FormatResponse(resp *command.Response) string {
	line := resp.ID.String() + " " + resp.Code.String()

	if len(resp.Data) == 0 {
		return line
	}

	return line + " " + hex.EncodeToString(resp.Data)
}
