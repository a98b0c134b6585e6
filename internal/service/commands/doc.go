// Package commands verifies uplinked commands against the dispatch table and
// runs them: immediately, or through the alarm scheduler when time-tagged.
// Every processed command is acknowledged downlink.
package commands
