// Package config defines the settings of the onboard alarm daemon and the
// ground CLI, and provides helpers to load, validate and save them in YAML
// format.
package config
