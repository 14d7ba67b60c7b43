// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - JobStore: Durable ingestion job rows with atomic claim/complete/fail
//   - DocumentStore: Document registration and status compare-and-set
//   - ArtifactStore: Stage artifact upserts
//   - ChunkStore: Atomic chunk set replacement and embedding storage
//   - StageExecutor: One implementation per pipeline stage
//   - ConfigStore: Application configuration
//
// # Stage Collaborators
//
// Used by the stage executors, never by the dispatcher directly:
//
//   - ObjectStore: Byte access to source objects and artifacts
//   - TextExtractor: Per-file-type text extraction
//   - PostProcessor: Chunking pipeline steps
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Stores vectors for retrieval
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or executor package
package driven
