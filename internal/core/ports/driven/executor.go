package driven

import (
	"context"
	"fmt"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// StageExecutor runs one pipeline stage for one document. Executors are
// stateless: everything they need arrives in the input, and everything
// they produce is returned for the caller to persist.
//
// Failures should be classified with domain.Transient or domain.Permanent.
type StageExecutor interface {
	// Stage returns the stage this executor implements.
	Stage() domain.Stage

	// Execute runs the stage.
	Execute(ctx context.Context, in *domain.StageInput) (*domain.StageResult, error)
}

// StageExecutors holds exactly one executor per stage.
type StageExecutors struct {
	Extract StageExecutor
	Chunk   StageExecutor
	Embed   StageExecutor
	Index   StageExecutor
}

// For returns the executor for a stage.
func (e *StageExecutors) For(stage domain.Stage) (StageExecutor, error) {
	var exec StageExecutor
	switch stage {
	case domain.StageExtract:
		exec = e.Extract
	case domain.StageChunk:
		exec = e.Chunk
	case domain.StageEmbed:
		exec = e.Embed
	case domain.StageIndex:
		exec = e.Index
	default:
		return nil, fmt.Errorf("%w: stage %q", domain.ErrUnsupportedType, stage)
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: no executor for stage %s", domain.ErrNotImplemented, stage)
	}
	return exec, nil
}

// Validate checks every stage has an executor that reports the right stage.
func (e *StageExecutors) Validate() error {
	for _, stage := range domain.Stages() {
		exec, err := e.For(stage)
		if err != nil {
			return err
		}
		if exec.Stage() != stage {
			return fmt.Errorf("%w: executor for %s reports stage %s", domain.ErrInvalidInput, stage, exec.Stage())
		}
	}
	return nil
}
