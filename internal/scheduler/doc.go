// Package scheduler virtualises the single alarm-match register of the RTC
// into any number of logical alarms.
//
// A Scheduler owns a bounded, time-ordered queue of alarm entries and keeps
// the hardware register pointed at the earliest one. Producers submit alarms
// through a mailbox; the hardware interrupt pushes an "alarm triggered" signal
// to the front of the same mailbox. A single goroutine (Run) consumes the
// mailbox, so the queue and the register shadow need no locking.
package scheduler
