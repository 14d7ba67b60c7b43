package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driving"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// Ensure Dispatcher implements the interface.
var _ driving.Dispatcher = (*Dispatcher)(nil)

// DispatcherConfig controls claiming and retries.
type DispatcherConfig struct {
	// Workers is the number of concurrent stage executions.
	Workers int

	// PollInterval is the delay between claim rounds when idle.
	PollInterval time.Duration

	// Lease is how long a claim holds without a heartbeat.
	Lease time.Duration

	// ReconcileEvery runs the stalled-work sweep every N poll ticks.
	// Zero disables it.
	ReconcileEvery int

	// Stages restricts claiming to these stages. Empty means all.
	Stages []domain.Stage

	// Retry decides between backoff and terminal failure.
	Retry domain.RetryPolicy

	// WorkerID prefixes the owner recorded on claims. Defaults to
	// hostname-pid-random.
	WorkerID string
}

// DispatcherConfigFromSettings builds a config from application settings.
func DispatcherConfigFromSettings(s *domain.AppSettings) DispatcherConfig {
	return DispatcherConfig{
		Workers:        s.Pipeline.Workers,
		PollInterval:   s.Pipeline.PollInterval,
		Lease:          s.Pipeline.Lease,
		ReconcileEvery: s.Pipeline.ReconcileEvery,
		Stages:         s.Pipeline.Stages,
		Retry:          s.Retry,
	}
}

// Dispatcher claims jobs from the job store, runs them on the stage
// executors and advances documents through the pipeline. All coordination
// with other dispatchers goes through the job store.
type Dispatcher struct {
	cfg       DispatcherConfig
	jobs      driven.JobStore
	docs      driven.DocumentStore
	artifacts driven.ArtifactStore
	chunks    driven.ChunkStore
	executors driven.StageExecutors
	lifecycle *Lifecycle
	rerun     *rerunner
	log       *slog.Logger

	claims atomic.Uint64
	active atomic.Int32
	wake   chan struct{}

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	pool     *ants.Pool
	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	cfg DispatcherConfig,
	jobs driven.JobStore,
	docs driven.DocumentStore,
	artifacts driven.ArtifactStore,
	chunks driven.ChunkStore,
	executors driven.StageExecutors,
) (*Dispatcher, error) {
	if err := executors.Validate(); err != nil {
		return nil, fmt.Errorf("stage executors: %w", err)
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = defaultWorkerID()
	}

	lifecycle := NewLifecycle(docs)
	log := logger.With("component", "dispatcher", "worker", cfg.WorkerID)
	return &Dispatcher{
		cfg:       cfg,
		jobs:      jobs,
		docs:      docs,
		artifacts: artifacts,
		chunks:    chunks,
		executors: executors,
		lifecycle: lifecycle,
		rerun:     &rerunner{docs: docs, jobs: jobs, lifecycle: lifecycle, log: log},
		log:       log,
		wake:      make(chan struct{}, 1),
	}, nil
}

// defaultWorkerID identifies this process in claims.
func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "ragd"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// WorkerID returns the claim owner prefix.
func (d *Dispatcher) WorkerID() string {
	return d.cfg.WorkerID
}

// Start runs the claim loop. It blocks until Stop is called or ctx is
// cancelled, then waits for in-flight jobs.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil // Already running
	}

	// Blocking mode: fill only submits while fewer than Workers jobs run, so
	// Submit waits at most for a finishing worker to return to the pool.
	pool, err := ants.NewPool(d.cfg.Workers,
		ants.WithPanicHandler(func(p any) {
			d.log.Error("worker panic", "panic", p)
		}),
	)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("creating worker pool: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.running = true
	d.cancel = cancel
	d.pool = pool
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	d.log.Info("dispatcher started",
		"workers", d.cfg.Workers, "lease", d.cfg.Lease, "stages", d.cfg.Stages)

	d.run(runCtx)

	// Jobs still running see the cancelled context and release their claim.
	d.inflight.Wait()
	pool.Release()
	cancel()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	close(done)

	d.log.Info("dispatcher stopped")
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Stop cancels the loop and waits for in-flight jobs to be released.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the loop is active.
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// run is the main dispatcher loop.
func (d *Dispatcher) run(ctx context.Context) {
	if d.cfg.ReconcileEvery > 0 {
		d.reconcileAndLog(ctx)
	}
	d.fill(ctx)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
			d.fill(ctx)
		case <-ticker.C:
			ticks++
			if d.cfg.ReconcileEvery > 0 && ticks%d.cfg.ReconcileEvery == 0 {
				d.reconcileAndLog(ctx)
			}
			d.fill(ctx)
		}
	}
}

// signal asks the loop to claim again without waiting for the next tick.
func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// fill claims jobs while fewer than Workers are running.
func (d *Dispatcher) fill(ctx context.Context) {
	for int(d.active.Load()) < d.cfg.Workers {
		if ctx.Err() != nil {
			return
		}

		job, err := d.claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				d.log.Error("claim failed", "error", err)
			}
			return
		}
		if job == nil {
			return
		}

		d.inflight.Add(1)
		d.active.Add(1)
		submitErr := d.pool.Submit(func() {
			defer d.inflight.Done()
			defer d.signal()
			defer d.active.Add(-1)
			d.process(ctx, job)
		})
		if submitErr != nil {
			d.active.Add(-1)
			d.inflight.Done()
			// Only a closed pool rejects here, when Stop races a claim.
			d.log.Debug("no free worker, releasing claim",
				"job", job.ID, "error", fmt.Errorf("%w: %w", domain.ErrCapacityExhausted, submitErr))
			if err := d.jobs.Release(context.WithoutCancel(ctx), job.ID, job.WorkerID); err != nil {
				d.log.Warn("release failed", "job", job.ID, "error", err)
			}
			return
		}
	}
}

// claim leases the next eligible job under a fresh owner ID.
func (d *Dispatcher) claim(ctx context.Context) (*domain.Job, error) {
	owner := d.cfg.WorkerID + "/" + strconv.FormatUint(d.claims.Add(1), 10)
	return d.jobs.ClaimNext(ctx, domain.ClaimRequest{
		Stages:   d.cfg.Stages,
		WorkerID: owner,
		Lease:    d.cfg.Lease,
	})
}

// ProcessNext claims one job and runs it to completion on the calling
// goroutine. It returns false when nothing was claimable.
func (d *Dispatcher) ProcessNext(ctx context.Context) (bool, error) {
	job, err := d.claim(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	d.process(ctx, job)
	return true, nil
}

// Drain processes jobs until none are claimable and returns how many ran.
// Jobs in retry backoff are not waited for.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := d.ProcessNext(ctx)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// process runs one claimed job and records its outcome.
func (d *Dispatcher) process(ctx context.Context, job *domain.Job) {
	log := d.log.With("job", job.ID, "document", job.DocumentID, "stage", job.Stage, "attempt", job.Attempts)
	bg := context.WithoutCancel(ctx)

	log.Debug("job claimed")

	if job.Attempts > d.cfg.Retry.MaxAttempts {
		// Reclaimed after its lease expired with the budget already spent.
		msg := fmt.Sprintf("lease expired after %d attempts", job.Attempts-1)
		d.fail(bg, log, job, msg, domain.RetryDecision{Terminal: true})
		return
	}

	if err := d.lifecycle.OnClaimed(bg, job.DocumentID); err != nil {
		log.Warn("marking document processing failed", "error", err)
	}

	execCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stopHeartbeat := d.heartbeat(execCtx, cancel, log, job)
	result, err := d.execute(execCtx, job)
	stopHeartbeat()

	if errors.Is(context.Cause(execCtx), domain.ErrLeaseLost) {
		log.Warn("lease lost during execution, discarding result")
		return
	}

	if err != nil && ctx.Err() != nil {
		// Shutting down: hand the job back instead of waiting out the lease.
		if relErr := d.jobs.Release(bg, job.ID, job.WorkerID); relErr != nil {
			log.Warn("release on shutdown failed", "error", relErr)
		} else {
			log.Info("job released on shutdown")
		}
		return
	}

	if err == nil {
		err = d.persist(bg, job, result)
	}
	if err != nil {
		d.handleFailure(bg, log, job, err)
		return
	}

	done, err := d.jobs.Complete(bg, job.ID, job.WorkerID)
	if errors.Is(err, domain.ErrLeaseLost) {
		log.Warn("lease lost before completion")
		return
	}
	if err != nil {
		log.Error("completing job failed", "error", err)
		return
	}

	log.Info("job completed")
	d.advance(bg, log, done)
}

// heartbeat extends the lease every lease/3 until the returned stop
// function is called. Losing the lease cancels ctx with ErrLeaseLost.
func (d *Dispatcher) heartbeat(
	ctx context.Context, cancel context.CancelCauseFunc, log *slog.Logger, job *domain.Job,
) func() {
	interval := d.cfg.Lease / 3
	if interval <= 0 {
		interval = d.cfg.Lease
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := d.jobs.ExtendLease(context.WithoutCancel(ctx), job.ID, job.WorkerID, d.cfg.Lease)
				if errors.Is(err, domain.ErrLeaseLost) {
					cancel(domain.ErrLeaseLost)
					return
				}
				if err != nil {
					log.Warn("extending lease failed", "error", err)
				}
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
	}
}

// execute loads the stage input and runs the executor. Executor panics
// become transient failures.
func (d *Dispatcher) execute(ctx context.Context, job *domain.Job) (result *domain.StageResult, err error) {
	exec, err := d.executors.For(job.Stage)
	if err != nil {
		return nil, domain.Permanent(err)
	}

	in, err := d.loadInput(ctx, job)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, domain.Transientf("%s executor panicked: %v", job.Stage, r)
		}
	}()

	result, err = exec.Execute(ctx, in)
	if err == nil && result == nil {
		result = &domain.StageResult{}
	}
	return result, err
}

// loadInput gathers the document and the outputs of earlier stages.
func (d *Dispatcher) loadInput(ctx context.Context, job *domain.Job) (*domain.StageInput, error) {
	doc, err := d.docs.GetDocument(ctx, job.DocumentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Permanent(err)
	}
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}

	in := &domain.StageInput{Document: *doc}

	if job.Stage != domain.StageExtract {
		if in.Artifacts, err = d.artifacts.ListArtifacts(ctx, job.DocumentID); err != nil {
			return nil, fmt.Errorf("loading artifacts: %w", err)
		}
	}

	if job.Stage == domain.StageEmbed || job.Stage == domain.StageIndex {
		if in.Chunks, err = d.chunks.GetChunks(ctx, job.DocumentID); err != nil {
			return nil, fmt.Errorf("loading chunks: %w", err)
		}
	}

	return in, nil
}

// persist writes the stage outputs before the job is completed.
func (d *Dispatcher) persist(ctx context.Context, job *domain.Job, result *domain.StageResult) error {
	for i := range result.Artifacts {
		artifact := result.Artifacts[i]
		artifact.DocumentID = job.DocumentID
		if _, err := d.artifacts.WriteArtifact(ctx, &artifact); err != nil {
			return fmt.Errorf("writing %s artifact: %w", artifact.Type, err)
		}
	}

	if result.Chunks != nil {
		if err := d.chunks.ReplaceChunks(ctx, job.DocumentID, result.Chunks); err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				return domain.Permanent(err)
			}
			return fmt.Errorf("replacing chunks: %w", err)
		}
	}

	if result.Embeddings != nil {
		if err := d.chunks.SaveEmbeddings(ctx, job.DocumentID, result.Embeddings); err != nil {
			return fmt.Errorf("saving embeddings: %w", err)
		}
	}

	return nil
}

// handleFailure applies the retry policy to an execution failure.
func (d *Dispatcher) handleFailure(ctx context.Context, log *slog.Logger, job *domain.Job, cause error) {
	decision := domain.RetryDecision{Terminal: true}
	if !domain.IsPermanent(cause) {
		decision = d.cfg.Retry.Decide(job.Attempts)
	}
	d.fail(ctx, log, job, cause.Error(), decision)
}

// fail records a failure and, when terminal, fails the document.
func (d *Dispatcher) fail(
	ctx context.Context, log *slog.Logger, job *domain.Job, message string, decision domain.RetryDecision,
) {
	if _, err := d.jobs.Fail(ctx, job.ID, job.WorkerID, message, decision); err != nil {
		if errors.Is(err, domain.ErrLeaseLost) {
			log.Warn("lease lost before failure was recorded", "error", message)
			return
		}
		log.Error("recording failure failed", "error", err)
		return
	}

	log.Warn("job failed", "error", message, "decision", decision.String())
	if !decision.Terminal {
		return
	}

	if err := d.lifecycle.OnFailed(ctx, job.DocumentID, fmt.Sprintf("%s: %s", job.Stage, message)); err != nil {
		log.Error("marking document failed", "error", err)
		return
	}
	d.rerunPending(ctx, log, job.DocumentID)
}

// advance creates the next stage's job, or finalises the document after
// the index stage. Losing the creation race is expected.
func (d *Dispatcher) advance(ctx context.Context, log *slog.Logger, job *domain.Job) {
	next, ok := job.Stage.Next()
	if !ok {
		if err := d.lifecycle.OnIndexed(ctx, job.DocumentID); err != nil {
			log.Error("marking document indexed failed", "error", err)
			return
		}
		d.rerunPending(ctx, log, job.DocumentID)
		return
	}

	_, err := d.jobs.CreateJob(ctx, job.DocumentID, next)
	switch {
	case err == nil:
		log.Debug("next stage enqueued", "next", next)
		d.signal()
	case errors.Is(err, domain.ErrConflict):
		log.Debug("next stage already enqueued", "next", next)
	default:
		log.Error("enqueueing next stage failed", "next", next, "error", err)
	}
}

// Reconcile replays follow-ups that a crash interrupted: missing next
// stage jobs, document statuses that do not match a terminal job and
// finished documents whose pending rerun never started. It returns the
// number of jobs and documents handled.
func (d *Dispatcher) Reconcile(ctx context.Context) (int, error) {
	stalled, err := d.jobs.ListStalled(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("listing stalled jobs: %w", err)
	}

	for i := range stalled {
		job := &stalled[i].Job
		log := d.log.With("job", job.ID, "document", job.DocumentID, "stage", job.Stage, "stall", stalled[i].Kind)
		log.Info("reconciling stalled job")

		switch stalled[i].Kind {
		case domain.StallMissingNextStage, domain.StallNotIndexed:
			d.advance(ctx, log, job)
		case domain.StallNotFailed:
			if err := d.lifecycle.OnFailed(ctx, job.DocumentID, fmt.Sprintf("%s: %s", job.Stage, job.Error)); err != nil {
				log.Error("marking document failed", "error", err)
			}
		}
	}

	pending, err := d.docs.ListPendingReruns(ctx, 0)
	if err != nil {
		return len(stalled), fmt.Errorf("listing pending reruns: %w", err)
	}
	for _, id := range pending {
		d.rerunPending(ctx, d.log.With("document", id), id)
	}

	return len(stalled) + len(pending), nil
}

// rerunPending restarts a finished document whose content changed while it
// was mid-pipeline.
func (d *Dispatcher) rerunPending(ctx context.Context, log *slog.Logger, documentID string) {
	started, err := d.rerun.applyPending(ctx, documentID)
	if err != nil {
		log.Error("rerunning document failed", "error", err)
		return
	}
	if started {
		d.signal()
	}
}

func (d *Dispatcher) reconcileAndLog(ctx context.Context) {
	n, err := d.Reconcile(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.log.Error("reconcile failed", "error", err)
		}
		return
	}
	if n > 0 {
		d.log.Info("reconcile finished", "stalled", n)
	}
}
