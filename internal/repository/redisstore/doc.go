// Package redisstore holds the Redis-backed stores shared by every API node:
// the daily contact quota ledger, the notification idempotency keys and the
// rating summary cache.
package redisstore
