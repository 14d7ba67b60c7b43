// Package domain defines the core business entities for the ingestion pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A registered source object and its pipeline status
//   - Artifact: The durable output of one pipeline stage
//   - Chunk: A retrieval unit derived from an artifact
//   - Job: One unit of work for a (document, stage) pair
//   - RetryPolicy: The backoff decision for failed jobs
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
