package scheduler

import (
	"runtime"
	"sync/atomic"
)

// InterruptBridge is the handler for the RTC interrupt line. OnEdge does not
// block, allocate or log; failures are counted and reported by the scheduler.
type InterruptBridge struct {
	// mailbox receives the alarm-triggered signal.
	mailbox *Mailbox
	// dropped counts edges lost to a full mailbox.
	dropped atomic.Uint64
}

// NewInterruptBridge creates a bridge feeding mailbox.
func NewInterruptBridge(mailbox *Mailbox) *InterruptBridge {
	return &InterruptBridge{mailbox: mailbox}
}

// OnEdge pushes an alarm-triggered event to the mailbox front and yields if
// that woke the scheduler.
func (b *InterruptBridge) OnEdge() {
	woken, err := b.mailbox.SendToFront(Event{Kind: EventAlarmTriggered})
	if err != nil {
		b.dropped.Add(1)

		return
	}

	if woken {
		runtime.Gosched()
	}
}

// TakeDropped returns and resets the number of lost edges.
func (b *InterruptBridge) TakeDropped() uint64 {
	return b.dropped.Swap(0)
}
