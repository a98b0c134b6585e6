// Package alarms persists pending alarms so they survive a reset.
//
// Storage is a fixed number of slots, one record per slot, matching the
// alarm queue capacity. Two backends implement Repository: FileRepository
// lays the slots out like the FRAM section image of the flight board, and
// SQLiteRepository keeps them in a SQLite table for ground-side simulation.
// Journal mirrors the scheduler queue into a Repository and rebuilds entries
// from it at start-up.
package alarms
