// Package retention enforces retention policies on audit records.
//
// The Pruner deletes records older than a configured age and, separately,
// trims the total record count to a configured maximum. The Scheduler runs
// the pruner on a cron schedule.
package retention
