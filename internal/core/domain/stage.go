package domain

import (
	"fmt"
	"strings"
)

// Stage is one ordered step of the ingestion pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
	StageIndex   Stage = "index"
)

var stageOrder = []Stage{StageExtract, StageChunk, StageEmbed, StageIndex}

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	return append([]Stage(nil), stageOrder...)
}

// FirstStage is where every document's pipeline begins.
func FirstStage() Stage {
	return stageOrder[0]
}

// Position returns the zero-based order of the stage, or -1 if unknown.
func (s Stage) Position() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// IsValid returns true if the stage is recognised.
func (s Stage) IsValid() bool {
	return s.Position() >= 0
}

// Next returns the following stage. ok is false for the last stage.
func (s Stage) Next() (next Stage, ok bool) {
	p := s.Position()
	if p < 0 || p == len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[p+1], true
}

// Prev returns the preceding stage. ok is false for the first stage.
func (s Stage) Prev() (prev Stage, ok bool) {
	p := s.Position()
	if p <= 0 {
		return "", false
	}
	return stageOrder[p-1], true
}

// IsLast returns true for the final stage.
func (s Stage) IsLast() bool {
	return s.Position() == len(stageOrder)-1
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// ParseStage parses a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, s)
	}
	return st, nil
}

// ParseStages parses a comma separated stage list. Empty input means all stages.
func ParseStages(s string) ([]Stage, error) {
	if strings.TrimSpace(s) == "" {
		return Stages(), nil
	}
	var out []Stage
	seen := make(map[Stage]bool)
	for _, part := range strings.Split(s, ",") {
		st, err := ParseStage(part)
		if err != nil {
			return nil, err
		}
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}
	return out, nil
}
