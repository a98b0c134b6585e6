// Package clock provides the software Unix clock that flight tasks read.
//
// Timekeeper advances a seconds counter from a ticker and is re-synchronised
// from the RTC at boot and by ground command. Manual is a settable clock for
// tests and simulations.
package clock
