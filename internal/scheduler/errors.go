package scheduler

import "errors"

var (
	// ErrQueueFull is returned when the alarm queue is at capacity.
	ErrQueueFull = errors.New("alarm queue full")
	// ErrQueueEmpty is returned when the alarm queue holds no entries.
	ErrQueueEmpty = errors.New("alarm queue empty")
	// ErrMailboxTimeout is returned when a mailbox operation does not complete in time.
	ErrMailboxTimeout = errors.New("mailbox timeout")
	// ErrMailboxFull is returned by non-blocking sends to a full mailbox.
	ErrMailboxFull = errors.New("mailbox full")
	// ErrPrematureFire marks a hardware alarm that fired before the earliest
	// entry was due, beyond the drift tolerance.
	ErrPrematureFire = errors.New("alarm fired early")
	// ErrCallbackFailure wraps the error returned by a fired alarm's action.
	ErrCallbackFailure = errors.New("alarm callback failed")
)
