package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatestArtifacts(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []Artifact{
		{ID: "a1", Type: ArtifactExtractedText, CreatedAt: t0},
		{ID: "t1", Type: ArtifactTranscript, CreatedAt: t0},
		{ID: "a2", Type: ArtifactExtractedText, CreatedAt: t0.Add(time.Minute)},
		{ID: "a0", Type: ArtifactExtractedText, CreatedAt: t0.Add(-time.Minute)},
	}

	out := LatestArtifacts(in)
	assert.Len(t, out, 2)
	assert.Equal(t, "a2", out[0].ID)
	assert.Equal(t, "t1", out[1].ID)
}

func TestFindArtifact(t *testing.T) {
	arts := []Artifact{
		{ID: "s", Type: ArtifactSlidesText},
		{ID: "e", Type: ArtifactExtractedText},
	}

	a, ok := FindArtifact(arts, ArtifactExtractedText, ArtifactSlidesText)
	assert.True(t, ok)
	assert.Equal(t, "e", a.ID)

	_, ok = FindArtifact(arts, ArtifactTranscript)
	assert.False(t, ok)
}

func TestArtifactPolicy_IsValid(t *testing.T) {
	assert.True(t, ArtifactOverwrite.IsValid())
	assert.True(t, ArtifactKeepHistory.IsValid())
	assert.False(t, ArtifactPolicy("append").IsValid())
}
