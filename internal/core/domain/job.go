package domain

import "time"

// JobStatus is the state of an ingestion job row.
type JobStatus string

// Job statuses.
const (
	// JobPending is waiting to be claimed, possibly not before NotBefore.
	JobPending JobStatus = "pending"

	// JobClaimed is leased to a worker until LeaseExpiresAt.
	JobClaimed JobStatus = "claimed"

	// JobCompleted finished successfully. Terminal.
	JobCompleted JobStatus = "completed"

	// JobFailed exhausted its retry budget or failed permanently. Terminal.
	JobFailed JobStatus = "failed"
)

// IsTerminal returns true for completed and failed jobs.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// IsValid returns true if the status is recognised.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobClaimed, JobCompleted, JobFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s JobStatus) String() string {
	return string(s)
}

// Job is one unit of work for a (document, stage) pair.
type Job struct {
	ID         string
	DocumentID string
	Stage      Stage
	Status     JobStatus

	// Attempts counts claims. It only ever increases.
	Attempts int

	// Error is the last failure message.
	Error string

	// WorkerID is the current or last claimant.
	WorkerID string

	// LeaseExpiresAt bounds a claim. A claimed job past its lease is
	// claimable again.
	LeaseExpiresAt time.Time

	// NotBefore delays a pending job after a retryable failure.
	NotBefore time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// IsActive reports whether the job is claimed under an unexpired lease.
func (j *Job) IsActive(now time.Time) bool {
	return j.Status == JobClaimed && now.Before(j.LeaseExpiresAt)
}

// ClaimRequest describes what a worker is willing to take.
type ClaimRequest struct {
	// Stages restricts claims to these stages. Empty means all stages.
	Stages []Stage

	// WorkerID identifies the claimant.
	WorkerID string

	// Lease is how long the claim holds before it can be reclaimed.
	Lease time.Duration
}

// JobCount is one cell of the job statistics grid.
type JobCount struct {
	Stage  Stage
	Status JobStatus
	Count  int
}

// StallKind classifies pipeline work that was interrupted between a job
// outcome and its follow-up.
type StallKind string

// Stall kinds.
const (
	// StallMissingNextStage is a completed job with no job for the next stage.
	StallMissingNextStage StallKind = "missing_next_stage"

	// StallNotIndexed is a completed index job whose document is not INDEXED.
	StallNotIndexed StallKind = "not_indexed"

	// StallNotFailed is a failed job whose document is not FAILED.
	StallNotFailed StallKind = "not_failed"
)

// StalledJob is a terminal job whose follow-up never happened.
type StalledJob struct {
	Kind StallKind
	Job  Job
}
