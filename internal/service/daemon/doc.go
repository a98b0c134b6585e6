// Package daemon wires the onboard alarm daemon: the software clock, the RTC,
// the alarm store, the scheduler, the command manager, housekeeping jobs and
// the ground link server.
package daemon
