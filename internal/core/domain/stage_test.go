package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStages_Order(t *testing.T) {
	assert.Equal(t, []Stage{StageExtract, StageChunk, StageEmbed, StageIndex}, Stages())
	assert.Equal(t, StageExtract, FirstStage())
}

func TestStage_NextPrev(t *testing.T) {
	tests := []struct {
		stage    Stage
		next     Stage
		hasNext  bool
		prev     Stage
		hasPrev  bool
		position int
	}{
		{StageExtract, StageChunk, true, "", false, 0},
		{StageChunk, StageEmbed, true, StageExtract, true, 1},
		{StageEmbed, StageIndex, true, StageChunk, true, 2},
		{StageIndex, "", false, StageEmbed, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			next, ok := tt.stage.Next()
			assert.Equal(t, tt.hasNext, ok)
			assert.Equal(t, tt.next, next)

			prev, ok := tt.stage.Prev()
			assert.Equal(t, tt.hasPrev, ok)
			assert.Equal(t, tt.prev, prev)

			assert.Equal(t, tt.position, tt.stage.Position())
			assert.Equal(t, !tt.hasNext, tt.stage.IsLast())
		})
	}
}

func TestStage_Unknown(t *testing.T) {
	s := Stage("publish")
	assert.False(t, s.IsValid())
	assert.Equal(t, -1, s.Position())
	_, ok := s.Next()
	assert.False(t, ok)
}

func TestParseStage(t *testing.T) {
	st, err := ParseStage(" Embed ")
	require.NoError(t, err)
	assert.Equal(t, StageEmbed, st)

	_, err = ParseStage("publish")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseStages(t *testing.T) {
	all, err := ParseStages("")
	require.NoError(t, err)
	assert.Equal(t, Stages(), all)

	some, err := ParseStages("index,extract,index")
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageIndex, StageExtract}, some)

	_, err = ParseStages("extract,bogus")
	assert.Error(t, err)
}
