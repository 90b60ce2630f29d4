// Package quota provides daily query-limit accounting with offline-safe
// at-least-once recording.
//
// # Overview
//
// The quota package is the single authority for two questions:
//
//   - may this user issue another query today? (Check)
//   - this user issued a query; make sure it is eventually counted
//     (RecordReliable)
//
// The per-user daily count is owned by a counter.Backend (memory, SQLite,
// or Redis). When recording against the backend fails, the record is
// appended to a local durable pending queue and retried in the background:
// after a short delay, on ambient wake signals, opportunistically after the
// next successful record, and on a cron schedule. A record is abandoned
// after 10 failed flush attempts.
//
// # Failure semantics
//
// Checking fails closed: if the backend count cannot be obtained, the user
// is treated as limited. Recording never fails visibly: RecordReliable
// returns false to mean "accepted for eventual recording, not confirmed"
// and must not be re-invoked for the same logical query.
//
// # Thread safety
//
// All operations are safe for concurrent use. Background flushes are
// single-flight: at most one flush runs at a time, process-wide for a given
// Service.
package quota
