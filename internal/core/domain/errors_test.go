package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrNotImplemented", ErrNotImplemented},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrConflict", ErrConflict},
		{"ErrCapacityExhausted", ErrCapacityExhausted},
		{"ErrInvalidTransition", ErrInvalidTransition},
		{"ErrPriorStageIncomplete", ErrPriorStageIncomplete},
		{"ErrLeaseLost", ErrLeaseLost},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrVectorIndexUnavailable", ErrVectorIndexUnavailable},
		{"ErrObjectStoreUnavailable", ErrObjectStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestIsPermanent(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"nil", nil, false},
		{"plain", base, false},
		{"transient", Transient(base), false},
		{"permanent", Permanent(base), true},
		{"wrapped permanent", fmt.Errorf("extract: %w", Permanent(base)), true},
		{"invalid input", fmt.Errorf("bad: %w", ErrInvalidInput), true},
		{"unsupported type", ErrUnsupportedType, true},
		{"transient wrapping invalid input", Transient(ErrInvalidInput), false},
		{"deadline", context.DeadlineExceeded, false},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.permanent, IsPermanent(tt.err))
		})
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	err := Permanentf("unsupported %s", "exe")
	assert.EqualError(t, err, "permanent: unsupported exe")

	var execErr *ExecutionError
	assert.True(t, errors.As(err, &execErr))
	assert.Equal(t, FailurePermanent, execErr.Kind)

	wrapped := Transient(ErrNotFound)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Nil(t, Transient(nil))
	assert.Nil(t, Permanent(nil))
	assert.EqualError(t, Transientf("timeout after %ds", 3), "transient: timeout after 3s")
}
