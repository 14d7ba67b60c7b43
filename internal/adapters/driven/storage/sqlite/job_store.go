package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

const jobColumns = `id, document_id, stage, status, attempts, error, worker_id, lease_expires_at,
	not_before, created_at, updated_at, completed_at`

// prevStageExpr and nextStageExpr map a stage column to its neighbour,
// built from the domain stage order.
var (
	prevStageExpr = stageCaseExpr("j.stage", domain.Stage.Prev)
	nextStageExpr = stageCaseExpr("j.stage", domain.Stage.Next)
)

// stageCaseExpr builds CASE <col> WHEN 'a' THEN 'b' ... END.
func stageCaseExpr(col string, neighbour func(domain.Stage) (domain.Stage, bool)) string {
	var b strings.Builder
	b.WriteString("CASE " + col)
	for _, st := range domain.Stages() {
		if n, ok := neighbour(st); ok {
			fmt.Fprintf(&b, " WHEN '%s' THEN '%s'", st, n)
		}
	}
	b.WriteString(" END")
	return b.String()
}

// CreateJob inserts the pending job for (documentID, stage) if the document
// exists, no job for the pair exists, and the previous stage completed.
func (s *jobStore) CreateJob(ctx context.Context, documentID string, stage domain.Stage) (*domain.Job, error) {
	if documentID == "" || !stage.IsValid() {
		return nil, domain.ErrInvalidInput
	}

	prev, hasPrev := stage.Prev()
	id := uuid.New().String()
	now := s.store.nowMillis()

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_jobs (id, document_id, stage, status, attempts, not_before, created_at, updated_at)
		SELECT ?, d.id, ?, 'pending', 0, 0, ?, ?
		FROM documents d
		WHERE d.id = ?
			AND (? = 0 OR EXISTS (
				SELECT 1 FROM ingestion_jobs p
				WHERE p.document_id = d.id AND p.stage = ? AND p.status = 'completed'
			))
		ON CONFLICT(document_id, stage) DO NOTHING
	`, id, string(stage), now, now, documentID, boolToInt(hasPrev), string(prev))
	if err != nil {
		return nil, fmt.Errorf("creating %s job: %w", stage, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("creating %s job: %w", stage, err)
	}
	if n == 1 {
		return s.GetJob(ctx, id)
	}

	return nil, s.classifyCreateMiss(ctx, documentID, stage, prev, hasPrev)
}

// classifyCreateMiss explains why CreateJob inserted nothing.
func (s *jobStore) classifyCreateMiss(
	ctx context.Context, documentID string, stage, prev domain.Stage, hasPrev bool,
) error {
	var docExists, jobExists, prevDone int
	err := s.store.db.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM documents WHERE id = ?),
			EXISTS (SELECT 1 FROM ingestion_jobs WHERE document_id = ? AND stage = ?),
			EXISTS (SELECT 1 FROM ingestion_jobs WHERE document_id = ? AND stage = ? AND status = 'completed')
	`, documentID, documentID, string(stage), documentID, string(prev)).Scan(&docExists, &jobExists, &prevDone)
	if err != nil {
		return fmt.Errorf("checking %s job: %w", stage, err)
	}

	switch {
	case docExists == 0:
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	case jobExists == 1:
		return fmt.Errorf("%s job for document %s: %w", stage, documentID, domain.ErrConflict)
	case hasPrev && prevDone == 0:
		return fmt.Errorf("%s job for document %s: %w", stage, documentID, domain.ErrPriorStageIncomplete)
	default:
		// The row was inserted and removed between the two statements.
		return fmt.Errorf("%s job for document %s: %w", stage, documentID, domain.ErrConflict)
	}
}

// ClaimNext leases one eligible job in a single UPDATE. The subquery picks
// the candidate; the outer WHERE re-checks eligibility so the statement is
// a compare-and-set on the row.
func (s *jobStore) ClaimNext(ctx context.Context, req domain.ClaimRequest) (*domain.Job, error) {
	if req.WorkerID == "" || req.Lease <= 0 {
		return nil, domain.ErrInvalidInput
	}

	now := s.store.nowMillis()
	leaseUntil := now + req.Lease.Milliseconds()

	stageFilter := ""
	args := []any{req.WorkerID, leaseUntil, now, now, now}
	if len(req.Stages) > 0 {
		placeholders := make([]string, len(req.Stages))
		for i, st := range req.Stages {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		stageFilter = "AND j.stage IN (" + strings.Join(placeholders, ", ") + ")"
	}
	args = append(args, now, now)

	row := s.store.db.QueryRowContext(ctx, `
		UPDATE ingestion_jobs
		SET status = 'claimed', worker_id = ?, attempts = attempts + 1,
			lease_expires_at = ?, updated_at = ?
		WHERE id = (
			SELECT j.id FROM ingestion_jobs j
			WHERE ((j.status = 'pending' AND j.not_before <= ?)
				OR (j.status = 'claimed' AND j.lease_expires_at <= ?))
				`+stageFilter+`
				AND (j.stage = 'extract' OR EXISTS (
					SELECT 1 FROM ingestion_jobs p
					WHERE p.document_id = j.document_id
						AND p.stage = `+prevStageExpr+`
						AND p.status = 'completed'
				))
			ORDER BY j.not_before, j.created_at, j.id
			LIMIT 1
		)
		AND ((status = 'pending' AND not_before <= ?) OR (status = 'claimed' AND lease_expires_at <= ?))
		RETURNING `+jobColumns, args...)

	job, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil // No eligible work is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return job, nil
}

// ExtendLease pushes the lease forward while the worker still holds it.
func (s *jobStore) ExtendLease(ctx context.Context, jobID, workerID string, lease time.Duration) error {
	now := s.store.nowMillis()
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE ingestion_jobs SET lease_expires_at = ?, updated_at = ?
		WHERE id = ? AND status = 'claimed' AND worker_id = ?
	`, now+lease.Milliseconds(), now, jobID, workerID)
	if err != nil {
		return fmt.Errorf("extending lease: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

// Complete marks a claimed job successful. Completing twice is a no-op.
func (s *jobStore) Complete(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	now := s.store.nowMillis()
	row := s.store.db.QueryRowContext(ctx, `
		UPDATE ingestion_jobs
		SET status = 'completed', lease_expires_at = NULL, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'claimed' AND (? = '' OR worker_id = ?)
		RETURNING `+jobColumns, now, now, jobID, workerID, workerID)

	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("completing job: %w", err)
	}

	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.JobCompleted {
		return current, nil
	}
	return nil, fmt.Errorf("completing job %s: %w", jobID, domain.ErrLeaseLost)
}

// Fail records the error and applies the retry decision.
func (s *jobStore) Fail(
	ctx context.Context, jobID, workerID, message string, decision domain.RetryDecision,
) (*domain.Job, error) {
	now := s.store.nowMillis()

	var row *sql.Row
	if decision.Terminal {
		row = s.store.db.QueryRowContext(ctx, `
			UPDATE ingestion_jobs
			SET status = 'failed', error = ?, lease_expires_at = NULL, completed_at = ?, updated_at = ?
			WHERE id = ? AND status = 'claimed' AND (? = '' OR worker_id = ?)
			RETURNING `+jobColumns, message, now, now, jobID, workerID, workerID)
	} else {
		row = s.store.db.QueryRowContext(ctx, `
			UPDATE ingestion_jobs
			SET status = 'pending', error = ?, lease_expires_at = NULL, not_before = ?, updated_at = ?
			WHERE id = ? AND status = 'claimed' AND (? = '' OR worker_id = ?)
			RETURNING `+jobColumns, message, now+decision.Delay.Milliseconds(), now, jobID, workerID, workerID)
	}

	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failing job: %w", err)
	}
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("failing job %s: %w", jobID, domain.ErrLeaseLost)
}

// Release hands a claimed job back as immediately claimable.
func (s *jobStore) Release(ctx context.Context, jobID, workerID string) error {
	now := s.store.nowMillis()
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE ingestion_jobs
		SET status = 'pending', lease_expires_at = NULL, not_before = ?, updated_at = ?
		WHERE id = ? AND status = 'claimed' AND worker_id = ?
	`, now, now, jobID, workerID)
	if err != nil {
		return fmt.Errorf("releasing job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *jobStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM ingestion_jobs WHERE id = ?", jobID)
	return scanJob(row)
}

// ListJobs returns a document's jobs in stage order.
func (s *jobStore) ListJobs(ctx context.Context, documentID string) ([]domain.Job, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM ingestion_jobs
		WHERE document_id = ?
		ORDER BY CASE stage WHEN 'extract' THEN 0 WHEN 'chunk' THEN 1 WHEN 'embed' THEN 2 ELSE 3 END
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	return scanJobRows(rows)
}

// DeleteJobs removes all of a document's jobs.
func (s *jobStore) DeleteJobs(ctx context.Context, documentID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM ingestion_jobs WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting jobs: %w", err)
	}
	return nil
}

// CountJobs returns job counts grouped by stage and status.
func (s *jobStore) CountJobs(ctx context.Context) ([]domain.JobCount, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT stage, status, COUNT(*) FROM ingestion_jobs
		GROUP BY stage, status ORDER BY stage, status
	`)
	if err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}
	defer rows.Close()

	var counts []domain.JobCount //nolint:prealloc // size unknown from query
	for rows.Next() {
		var stage, status string
		var n int
		if err := rows.Scan(&stage, &status, &n); err != nil {
			return nil, fmt.Errorf("scanning job count: %w", err)
		}
		counts = append(counts, domain.JobCount{
			Stage:  domain.Stage(stage),
			Status: domain.JobStatus(status),
			Count:  n,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job counts: %w", err)
	}

	return counts, nil
}

// ListStalled finds terminal jobs whose follow-up was never applied: a
// completed stage with no next job, a completed index job on a document
// that is not INDEXED, or a failed job on a document that is not FAILED.
func (s *jobStore) ListStalled(ctx context.Context, limit int) ([]domain.StalledJob, error) {
	if limit <= 0 {
		limit = 100
	}

	cols := prefixColumns("j.", jobColumns)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT 'missing_next_stage', `+cols+`
		FROM ingestion_jobs j JOIN documents d ON d.id = j.document_id
		WHERE j.status = 'completed' AND j.stage != 'index'
			AND d.status IN ('REGISTERED', 'PROCESSING')
			AND NOT EXISTS (
				SELECT 1 FROM ingestion_jobs n
				WHERE n.document_id = j.document_id AND n.stage = `+nextStageExpr+`
			)
		UNION ALL
		SELECT 'not_indexed', `+cols+`
		FROM ingestion_jobs j JOIN documents d ON d.id = j.document_id
		WHERE j.status = 'completed' AND j.stage = 'index' AND d.status IN ('REGISTERED', 'PROCESSING')
		UNION ALL
		SELECT 'not_failed', `+cols+`
		FROM ingestion_jobs j JOIN documents d ON d.id = j.document_id
		WHERE j.status = 'failed' AND d.status IN ('REGISTERED', 'PROCESSING')
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying stalled jobs: %w", err)
	}
	defer rows.Close()

	var stalled []domain.StalledJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		var kind string
		job, err := scanJobWithPrefix(rows, &kind)
		if err != nil {
			return nil, err
		}
		stalled = append(stalled, domain.StalledJob{Kind: domain.StallKind(kind), Job: *job})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stalled jobs: %w", err)
	}

	return stalled, nil
}

// ==================== Job Helpers ====================

// prefixColumns qualifies a comma separated column list.
func prefixColumns(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// scanJob scans one job row.
func scanJob(row scanner) (*domain.Job, error) {
	return scanJobWithPrefix(row)
}

// scanJobWithPrefix scans a job row preceded by extra leading columns.
func scanJobWithPrefix(row scanner, leading ...any) (*domain.Job, error) {
	var job domain.Job
	var stage, status string
	var errMsg, workerID sql.NullString
	var leaseExpiresAt, completedAt sql.NullInt64
	var notBefore, createdAt, updatedAt int64

	dest := append(leading, &job.ID, &job.DocumentID, &stage, &status, &job.Attempts, &errMsg,
		&workerID, &leaseExpiresAt, &notBefore, &createdAt, &updatedAt, &completedAt)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Stage = domain.Stage(stage)
	job.Status = domain.JobStatus(status)
	job.Error = errMsg.String
	job.WorkerID = workerID.String
	job.LeaseExpiresAt = fromNullMillis(leaseExpiresAt)
	job.NotBefore = fromNullMillis(sql.NullInt64{Int64: notBefore, Valid: true})
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	job.CompletedAt = fromNullMillis(completedAt)
	return &job, nil
}

// scanJobRows scans multiple job rows.
func scanJobRows(rows *sql.Rows) ([]domain.Job, error) {
	var jobs []domain.Job //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// boolToInt converts a bool to SQLite integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
