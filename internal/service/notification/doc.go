// Package notification fans events out to recipients over push, in-app and
// SMS channels.
//
// Dispatch only enqueues: one job per (recipient, channel) keyed by
// JobKey. A Queue (MemoryQueue in-process, or the asynq-backed queue in
// internal/worker) hands jobs to the Deliverer, which checks the
// idempotency store, applies channel eligibility and calls the channel's
// Transport. Transient failures are retried with backoff up to a bounded
// number of attempts; everything else is dropped and counted.
package notification
