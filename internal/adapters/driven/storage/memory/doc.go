// Package memory provides in-memory adapters for tests and ephemeral runs:
// a configuration store and a bucket/key object store.
package memory
