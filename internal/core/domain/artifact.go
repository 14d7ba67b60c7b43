package domain

import "time"

// ArtifactType names the kind of output a stage wrote.
type ArtifactType string

// Known artifact types.
const (
	ArtifactExtractedText ArtifactType = "extracted_text"
	ArtifactTranscript    ArtifactType = "transcript"
	ArtifactSlidesText    ArtifactType = "slides_text"
)

// String returns the string representation.
func (t ArtifactType) String() string {
	return string(t)
}

// Artifact is the durable output of a pipeline stage, stored externally
// and referenced by URL.
type Artifact struct {
	ID         string
	DocumentID string
	Type       ArtifactType
	URL        string
	CreatedAt  time.Time
}

// ArtifactPolicy controls what happens when a stage rewrites an artifact type.
type ArtifactPolicy string

// Artifact policies.
const (
	// ArtifactOverwrite replaces the previous artifact of the same type.
	ArtifactOverwrite ArtifactPolicy = "overwrite"

	// ArtifactKeepHistory retains previous versions; reads return the newest.
	ArtifactKeepHistory ArtifactPolicy = "keep-history"
)

// IsValid returns true if the policy is recognised.
func (p ArtifactPolicy) IsValid() bool {
	return p == ArtifactOverwrite || p == ArtifactKeepHistory
}

// LatestArtifacts keeps only the newest artifact of each type, preserving
// the order in which types first appear.
func LatestArtifacts(artifacts []Artifact) []Artifact {
	index := make(map[ArtifactType]int, len(artifacts))
	out := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		i, seen := index[a.Type]
		if !seen {
			index[a.Type] = len(out)
			out = append(out, a)
			continue
		}
		if !a.CreatedAt.Before(out[i].CreatedAt) {
			out[i] = a
		}
	}
	return out
}

// FindArtifact returns the first artifact of any of the given types.
func FindArtifact(artifacts []Artifact, types ...ArtifactType) (Artifact, bool) {
	for _, t := range types {
		for _, a := range artifacts {
			if a.Type == t {
				return a, true
			}
		}
	}
	return Artifact{}, false
}
