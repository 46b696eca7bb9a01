// Package matching implements the matching request lifecycle: creation and
// fan-out to eligible visitors, visitor responses and the single-winner
// accept, supplier edits/extensions/cancellation, completion and expiry.
//
// Every mutation of a request runs under the per-request lock
// (LockKey) and the repository's compare-and-set on status and version, so
// concurrent accepts, cancels and expiry sweeps resolve to exactly one
// outcome. Reads never lock.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package matching
