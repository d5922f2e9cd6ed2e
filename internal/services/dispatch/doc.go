// Package dispatchsvc is the protocol facade over the runtime: at-most-once
// admission, idempotent publish into the shared log, direct queue fan-out,
// and destination registration, cursor, and migration operations.
//
// Precondition failures (duplicate keys, stale cursors, unknown destinations)
// are reported as false returns, never as errors.
package dispatchsvc
