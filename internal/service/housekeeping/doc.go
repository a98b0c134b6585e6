// Package housekeeping plans recurring maintenance jobs as default alarms.
//
// Each job has a cron expression. The planner submits the next occurrence of
// every job to the scheduler; when the alarm fires, the job runs and its
// following occurrence is submitted.
package housekeeping
