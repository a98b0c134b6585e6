// Package command contains the command-and-response vocabulary shared by the
// ground link, the command manager and the alarm scheduler.
//
// It defines command identifiers, the Message uplinked from the ground, the
// Callback signature every command implements, the Response reported back on
// the downlink and their compact binary frames.
package command
