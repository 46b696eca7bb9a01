// Package domain holds the marketplace vocabulary: matching requests and
// their responses, conversations and messages, ratings, contact reveals and
// notification events.
//
// The package imports nothing else from internal/. Types carry JSON and DB
// tags and may expose pure helpers such as status transition checks,
// expiry math and country normalization. Anything that needs a clock, a
// store or a request context lives in the service packages.
package domain
