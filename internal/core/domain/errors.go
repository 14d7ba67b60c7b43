package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown file or artifact type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Pipeline Errors.

	// ErrConflict indicates a lost race: a duplicate claim or a duplicate
	// next-stage job. Callers treat it as benign.
	ErrConflict = errors.New("conflict")

	// ErrCapacityExhausted indicates no worker slot is free.
	// Callers back off and retry the claim later.
	ErrCapacityExhausted = errors.New("capacity exhausted")

	// ErrInvalidTransition indicates a document status change that the
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPriorStageIncomplete indicates a stage job was requested before the
	// previous stage completed.
	ErrPriorStageIncomplete = errors.New("prior stage incomplete")

	// ErrLeaseLost indicates the worker no longer holds the job's lease.
	ErrLeaseLost = errors.New("lease lost")

	// Collaborator Errors.

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrObjectStoreUnavailable indicates the object store is not configured.
	ErrObjectStoreUnavailable = errors.New("object store unavailable")
)

// FailureKind classifies a stage execution failure.
type FailureKind string

// Failure kinds.
const (
	// FailureTransient is retryable: network errors, timeouts, rate limits.
	FailureTransient FailureKind = "transient"

	// FailurePermanent is terminal: malformed input, unsupported file type.
	FailurePermanent FailureKind = "permanent"
)

// ExecutionError wraps a stage executor failure with its retry class.
type ExecutionError struct {
	Kind FailureKind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{Kind: FailureTransient, Err: err}
}

// Permanent marks err as terminal.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{Kind: FailurePermanent, Err: err}
}

// Transientf formats a retryable error.
func Transientf(format string, args ...any) error {
	return Transient(fmt.Errorf(format, args...))
}

// Permanentf formats a terminal error.
func Permanentf(format string, args ...any) error {
	return Permanent(fmt.Errorf(format, args...))
}

// IsPermanent reports whether err must not be retried. Unclassified
// errors are transient, except invalid input and unsupported types.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind == FailurePermanent
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnsupportedType)
}
