// Package alarm contains the unit of scheduling: an Entry bound to an absolute
// Unix time together with the action to run when that time arrives.
//
// The action is a closed sum type: DefaultAction for parameterless
// housekeeping work, CommandAction for a deferred time-tagged command.
package alarm
