// Package rtc describes the real-time-clock collaborator used by the alarm
// scheduler: a device with a single alarm-match register, a sticky
// alarm-fired flag and an interrupt line, plus the calendar conversions
// between Unix seconds and the device's date/time registers.
//
// Drivers live in sub-packages: simrtc (in-process device) and ds3232
// (register driver over I2C).
package rtc
