// Package sqlite provides a unified SQLite-based implementation of the
// pipeline's store interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements every store interface
// through a single database file:
//
//   - DocumentStore: Document registration and status compare-and-set
//   - ArtifactStore: Stage artifact upserts
//   - ChunkStore: Transactional chunk set replacement
//   - JobStore: Ingestion jobs with leased claims
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.ragd/data/ingestion.db
//
// # Concurrency
//
// Every job state change is one conditional UPDATE, so several processes
// may open the same file and claim work concurrently. WAL mode lets readers
// proceed while a writer holds the lock; busy_timeout queues writers.
package sqlite
