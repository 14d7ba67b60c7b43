// Package file provides the file-based configuration store.
//
// Configuration lives in a TOML file (by default ~/.ragd/config.toml).
// Nested tables are flattened to dot-notation keys, so
//
//	[pipeline]
//	workers = 8
//
// is read as "pipeline.workers". Selected environment variables override
// file values without being written back, and LoadEnv loads a .env file
// into the environment before the store is created.
package file
