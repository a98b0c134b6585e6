// Package ground implements the ground-station side of the link: it builds
// command frames from CLI input, uplinks them and prints downlinked responses.
package ground
