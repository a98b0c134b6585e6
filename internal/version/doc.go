// Package version exposes build metadata for the onboard daemon and the
// ground CLI.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Short and Full render them for CLI output; Fields renders them
// for the boot log line.
package version
