package domain

// StageInput is everything a stage executor may read about a document.
type StageInput struct {
	// Document is the document being processed.
	Document Document

	// Artifacts are the artifacts written by earlier stages.
	Artifacts []Artifact

	// Chunks is the current chunk set. Populated for embed and index.
	Chunks []Chunk
}

// StageResult is what a stage produced. Which fields are set depends on
// the stage: extract writes Artifacts, chunk writes Chunks, embed writes
// Embeddings and index writes nothing locally.
type StageResult struct {
	// Artifacts are upserted by (document, artifact type).
	Artifacts []Artifact

	// Chunks replace the document's whole chunk set when non-nil.
	Chunks []Chunk

	// Embeddings are stored on chunks by position when non-nil.
	Embeddings [][]float32

	// Indexed counts vectors written to the external index.
	Indexed int
}

// Extraction is the text a file-type extractor produced.
type Extraction struct {
	// ArtifactType names the kind of text (extracted, transcript, slides).
	ArtifactType ArtifactType

	// Text is the extracted text.
	Text string
}

// ChunkSource is the text the chunk stage splits.
type ChunkSource struct {
	Document     *Document
	ArtifactType ArtifactType
	Text         string
}

// DocumentReport is a document with its pipeline details.
type DocumentReport struct {
	Document   Document
	Jobs       []Job
	Artifacts  []Artifact
	ChunkCount int
}

// CurrentStage returns the furthest stage that has a job, and that job.
func (r *DocumentReport) CurrentStage() (*Job, bool) {
	var current *Job
	for i := range r.Jobs {
		if current == nil || r.Jobs[i].Stage.Position() > current.Stage.Position() {
			current = &r.Jobs[i]
		}
	}
	return current, current != nil
}
