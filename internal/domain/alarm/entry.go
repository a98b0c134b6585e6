package alarm

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/oshokin/obc-alarm/internal/domain/command"
)

// Kind tags the variant of an alarm action.
type Kind uint8

const (
	// KindDefault is a parameterless housekeeping action.
	KindDefault Kind = iota
	// KindTimeTaggedCommand is the deferred execution of a command message.
	KindTimeTaggedCommand
)

// String returns the name used in logs and persisted records.
func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindTimeTaggedCommand:
		return "time_tagged_command"
	default:
		return "unknown"
	}
}

// Action is what runs when an alarm fires. The set of implementations is
// closed: DefaultAction and CommandAction.
type Action interface {
	Kind() Kind

	sealed()
}

// DefaultAction is a zero-argument fallible callback.
type DefaultAction struct {
	// Name identifies the action so it can be re-bound after a reset.
	Name string
	// Run is invoked on the scheduler task when the alarm fires.
	Run func(ctx context.Context) error
}

// Kind implements Action.
func (DefaultAction) Kind() Kind { return KindDefault }

func (DefaultAction) sealed() {}

// CommandAction runs a command callback against a stored command message.
type CommandAction struct {
	// Callback executes the command and fills the response buffer.
	Callback command.Callback
	// Command is an owned copy of the uplinked message.
	Command command.Message
}

// Kind implements Action.
func (CommandAction) Kind() Kind { return KindTimeTaggedCommand }

func (CommandAction) sealed() {}

var (
	// ErrNoAction is returned for entries without an action.
	ErrNoAction = errors.New("alarm has no action")
	// ErrNoCallback is returned for actions without a function to call.
	ErrNoCallback = errors.New("alarm action has no callback")
)

// Entry is a scheduled action. Entries are values: once submitted they are
// never changed, only removed from the queue when they fire.
type Entry struct {
	// ID correlates log lines of the same alarm. It carries no scheduling meaning.
	ID uuid.UUID
	// TriggerTime is the absolute fire time in seconds since the Unix epoch.
	TriggerTime uint32
	// Action runs when the alarm fires.
	Action Action
}

// NewDefault creates a housekeeping alarm.
func NewDefault(triggerTime uint32, name string, run func(ctx context.Context) error) Entry {
	return Entry{
		ID:          uuid.New(),
		TriggerTime: triggerTime,
		Action: DefaultAction{
			Name: name,
			Run:  run,
		},
	}
}

// NewTimeTaggedCommand creates an alarm that runs cb against a private copy of msg.
func NewTimeTaggedCommand(triggerTime uint32, cb command.Callback, msg *command.Message) Entry {
	return Entry{
		ID:          uuid.New(),
		TriggerTime: triggerTime,
		Action: CommandAction{
			Callback: cb,
			Command:  msg.Clone(),
		},
	}
}

// Kind returns the variant of the entry's action.
func (e *Entry) Kind() Kind {
	if e.Action == nil {
		return KindDefault
	}

	return e.Action.Kind()
}

// Validate checks that the entry can be executed when it fires.
func (e *Entry) Validate() error {
	switch a := e.Action.(type) {
	case nil:
		return ErrNoAction
	case DefaultAction:
		if a.Run == nil {
			return ErrNoCallback
		}
	case CommandAction:
		if a.Callback == nil {
			return ErrNoCallback
		}

		return a.Command.Validate()
	}

	return nil
}
