// Package memory provides in-process implementations of every repository
// contract. They back single-node deployments (storage.type: memory) and
// service tests. Values are copied on the way in and out so callers never
// share state with the store.
package memory
