// Package audit records authorization decisions for compliance and
// forensics.
//
// Every evaluation produces one Record capturing the request (action,
// resource, principal tags, call input), the decision (matched permit and
// forbid policies, per-policy errors, mode), and timing. Records are written
// asynchronously through a Recorder so evaluation latency never depends on
// the storage backend.
//
// Storage backends live in the storage subpackage: a SQLite backend for
// production and an in-memory backend for tests. The Pruner and Scheduler
// enforce retention on a cron schedule.
package audit
