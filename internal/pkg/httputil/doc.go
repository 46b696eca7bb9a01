// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers write through these helpers instead of raw http.ResponseWriter
// calls so every endpoint returns the same JSON envelope, and service errors
// map to status codes in exactly one place (Fail).
package httputil
