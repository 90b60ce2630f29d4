// Package counter provides persistence backends for per-user daily query
// counts.
//
// A Backend owns the authoritative count: it answers how many queries a user
// has recorded "today" (in a fixed reference timezone shared by all users)
// and appends one more. Recording is expected to tolerate being called
// slightly more than once per logical query; the quota service's retry path
// trades a small, bounded over-count for never losing records silently.
//
// Three backends are provided:
//
//   - memory: mutex-guarded map, for tests and development
//   - sqlite: durable single-instance storage (modernc.org/sqlite)
//   - redis: shared storage for multi-instance deployments (go-redis)
package counter
