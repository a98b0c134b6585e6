package command

import (
	"context"
	"errors"
	"fmt"
)

// ID identifies a command in the dispatch table.
type ID uint8

// Known command identifiers. The numbering is shared with the ground station.
const (
	EndOfFrame ID = iota
	ExecOBCReset
	RTCSync
	DownlinkLogsNextPass
	MicroSDFormat
	Ping
	DownlinkTelem

	numIDs
)

// idNames maps identifiers to the names used in logs and on the ground CLI.
//
//nolint:gochecknoglobals // Read-only lookup table.
var idNames = [numIDs]string{
	EndOfFrame:           "end_of_frame",
	ExecOBCReset:         "exec_obc_reset",
	RTCSync:              "rtc_sync",
	DownlinkLogsNextPass: "downlink_logs_next_pass",
	MicroSDFormat:        "micro_sd_format",
	Ping:                 "ping",
	DownlinkTelem:        "downlink_telem",
}

// Valid reports whether id names a known command.
func (id ID) Valid() bool {
	return id < numIDs
}

// String returns the command name, or a numeric form for unknown ids.
func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("unknown(%d)", uint8(id))
	}

	return idNames[id]
}

// ParseID resolves a command name to its identifier.
func ParseID(name string) (ID, error) {
	for id, n := range idNames {
		if n == name {
			return ID(id), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// MaxParamsSize bounds the parameter block of a command message.
const MaxParamsSize = 32

var (
	// ErrUnknownCommand is returned for identifiers outside the dispatch table.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrParamsTooLarge is returned when a message carries more than MaxParamsSize bytes.
	ErrParamsTooLarge = errors.New("command parameters too large")
)

// Message is a command as uplinked from the ground.
type Message struct {
	// ID selects the command callback.
	ID ID
	// Timestamp is the Unix time at which a time-tagged command must run.
	Timestamp uint32
	// IsTimeTagged marks commands deferred until Timestamp.
	IsTimeTagged bool
	// Params is the command-specific parameter block.
	Params []byte
}

// Clone returns a copy of the message that shares no memory with m.
func (m *Message) Clone() Message {
	cloned := *m
	if m.Params != nil {
		cloned.Params = append([]byte(nil), m.Params...)
	}

	return cloned
}

// Validate checks the identifier and parameter size.
func (m *Message) Validate() error {
	if !m.ID.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCommand, uint8(m.ID))
	}

	if len(m.Params) > MaxParamsSize {
		return fmt.Errorf("%w: %d bytes", ErrParamsTooLarge, len(m.Params))
	}

	return nil
}

// Callback executes a command. It writes at most len(out) response bytes into
// out and returns how many it wrote. out is a scratch buffer owned by the caller.
type Callback func(ctx context.Context, msg *Message, out []byte) (int, error)

// Downlinker delivers command responses to the ground.
type Downlinker interface {
	DownlinkCommandResponse(ctx context.Context, resp Response) error
}
