package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func mediaDoc(ft domain.FileType) *domain.Document {
	return &domain.Document{ID: "doc-1", Key: "talks/keynote." + ft.String(), FileType: ft}
}

func TestFileTypes(t *testing.T) {
	types := New("").FileTypes()
	assert.Len(t, types, 4)
	for _, ft := range types {
		assert.True(t, ft.IsMedia(), ft)
	}
}

func TestExtract_Disabled(t *testing.T) {
	e := New("   ")
	assert.False(t, e.Enabled())

	_, err := e.Extract(context.Background(), mediaDoc(domain.FileTypeMP3), []byte("id3"))
	assert.ErrorIs(t, err, ErrTranscriptionDisabled)
	assert.True(t, domain.IsPermanent(err))
}

func TestExtract_Transcript(t *testing.T) {
	runner := &mockRunner{output: []byte("  welcome to the keynote\n")}
	e := NewWithRunner("whisper --model base --output-format txt {file}", runner)
	require.True(t, e.Enabled())

	result, err := e.Extract(context.Background(), mediaDoc(domain.FileTypeMP4), []byte("ftyp"))
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactTranscript, result.ArtifactType)
	assert.Equal(t, "welcome to the keynote", result.Text)

	assert.Equal(t, "whisper", runner.name)
	require.Len(t, runner.args, 5)
	assert.Equal(t, []string{"--model", "base", "--output-format", "txt"}, runner.args[:4])
	assert.Contains(t, runner.args[4], "input.mp4")
}

func TestExtract_Failure(t *testing.T) {
	e := NewWithRunner("transcribe", &mockRunner{err: errors.New("unsupported codec")})

	_, err := e.Extract(context.Background(), mediaDoc(domain.FileTypeWAV), []byte("RIFF"))
	assert.True(t, domain.IsPermanent(err))
	assert.Contains(t, err.Error(), "transcribe failed")
}
