package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/stripe-ledger-recon/internal/application/reconcile"
)

// JobStatus represents the current state of a reconciliation job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// JobKind selects which reconciliation a job runs.
type JobKind string

const (
	KindTransactions JobKind = "transactions"
	KindBalances     JobKind = "balances"
	KindAll          JobKind = "all"
)

// ParseJobKind validates a job kind. Empty means all.
func ParseJobKind(s string) (JobKind, error) {
	switch JobKind(s) {
	case "", KindAll:
		return KindAll, nil
	case KindTransactions, KindBalances:
		return JobKind(s), nil
	}
	return "", fmt.Errorf("invalid job kind: %s", s)
}

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without a phase
	// change before it is considered hung.
	DefaultJobStaleThreshold = 30 * time.Minute

	// DefaultJobMaxDuration is the maximum time a job can run before being
	// forcefully marked as failed.
	DefaultJobMaxDuration = 2 * time.Hour

	// DefaultJobRetention is how long finished jobs stay queryable.
	DefaultJobRetention = 24 * time.Hour
)

// ErrJobConflict is returned when a job of the same kind is already running.
var ErrJobConflict = errors.New("reconciliation already running")

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobProgress holds the current phase of a job.
type JobProgress struct {
	Phase      string    // "pending", "running", "completed", "failed", "cancelled"
	LastUpdate time.Time
}

// Job represents a running or finished reconciliation job.
type Job struct {
	ID          string
	Kind        JobKind
	Status      JobStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    JobProgress
	Result      any
	Error       error
	cancelFunc  context.CancelFunc
	released    bool // kind locks already handed back
}

// Runner executes reconciliations. *reconcile.Engine satisfies it.
type Runner interface {
	RunTransactionReconciliation(ctx context.Context) (*reconcile.TransactionSummary, error)
	RunBalanceReconciliation(ctx context.Context) (*reconcile.BalanceOutcome, error)
	RunAll(ctx context.Context) (*reconcile.AllSummary, error)
}

// ReconcileService runs reconciliations as background jobs.
type ReconcileService struct {
	runner Runner
	logger *slog.Logger

	// Job management
	jobs      map[string]*Job
	jobsMutex sync.RWMutex

	// Only one job per kind at a time; "all" holds both kinds.
	kindLocks  map[JobKind]*sync.Mutex
	locksMutex sync.Mutex

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewReconcileService creates a new reconcile service.
func NewReconcileService(runner Runner, logger *slog.Logger) *ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileService{
		runner:    runner,
		logger:    logger,
		jobs:      make(map[string]*Job),
		kindLocks: make(map[JobKind]*sync.Mutex),
	}
}

// StartJob starts a reconciliation job asynchronously and returns its ID.
// The passed context is NOT the parent of the job: jobs outlive the HTTP
// request that started them. Use CancelJob to stop one.
func (s *ReconcileService) StartJob(_ context.Context, kind JobKind) (string, error) {
	if _, err := ParseJobKind(string(kind)); err != nil || kind == "" {
		return "", fmt.Errorf("invalid job kind: %q", kind)
	}
	if s.runner == nil {
		return "", errors.New("no reconciliation runner configured")
	}

	if !s.tryLockKind(kind) {
		return "", fmt.Errorf("%w: %s", ErrJobConflict, kind)
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Status:     StatusPending,
		StartedAt:  now,
		Progress:   JobProgress{Phase: "pending", LastUpdate: now},
		cancelFunc: cancel,
	}

	s.jobsMutex.Lock()
	s.jobs[job.ID] = job
	s.jobsMutex.Unlock()

	go s.runJob(jobCtx, job.ID, kind)

	s.logger.Info("reconcile job started", "job_id", job.ID, "kind", kind)
	return job.ID, nil
}

// GetJob returns a copy of the job with the given ID.
func (s *ReconcileService) GetJob(jobID string) (*Job, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	cp := *job
	return &cp, nil
}

// ListActiveJobs returns all running or pending jobs.
func (s *ReconcileService) ListActiveJobs() []*Job {
	return s.listJobs(func(j *Job) bool {
		return j.Status == StatusPending || j.Status == StatusRunning
	})
}

// ListAllJobs returns every job still retained.
func (s *ReconcileService) ListAllJobs() []*Job {
	return s.listJobs(func(*Job) bool { return true })
}

func (s *ReconcileService) listJobs(keep func(*Job) bool) []*Job {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := []*Job{}
	for _, job := range s.jobs {
		if keep(job) {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	return jobs
}

// CancelJob cancels a pending or running job.
func (s *ReconcileService) CancelJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("job cannot be cancelled: status=%s", job.Status)
	}

	job.cancelFunc()
	now := time.Now()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	job.Progress = JobProgress{Phase: "cancelled", LastUpdate: now}

	s.logger.Info("reconcile job cancelled", "job_id", jobID)
	return nil
}

// Run executes the reconciliation named by kind on runner.
func Run(ctx context.Context, runner Runner, kind JobKind) (any, error) {
	switch kind {
	case KindTransactions:
		return runner.RunTransactionReconciliation(ctx)
	case KindBalances:
		return runner.RunBalanceReconciliation(ctx)
	default:
		return runner.RunAll(ctx)
	}
}

// runJob executes the job in a background goroutine.
func (s *ReconcileService) runJob(ctx context.Context, jobID string, kind JobKind) {
	defer s.releaseJob(jobID)

	s.setRunning(jobID)

	result, err := Run(ctx, s.runner, kind)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Already marked as cancelled in CancelJob
			return
		}
		s.failJob(jobID, err)
		return
	}
	s.completeJob(jobID, result)
}

func (s *ReconcileService) setRunning(jobID string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.Status == StatusPending {
		job.Status = StatusRunning
		job.Progress = JobProgress{Phase: "running", LastUpdate: time.Now()}
	}
}

// completeJob marks a job as completed with results.
func (s *ReconcileService) completeJob(jobID string, result any) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != StatusRunning {
		return
	}
	now := time.Now()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.Result = result
	job.Progress = JobProgress{Phase: "completed", LastUpdate: now}
	s.logger.Info("reconcile job completed", "job_id", jobID, "kind", job.Kind,
		"duration", now.Sub(job.StartedAt).Round(time.Millisecond))
}

// failJob marks a job as failed with an error.
func (s *ReconcileService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != StatusRunning {
		return
	}
	now := time.Now()
	job.Status = StatusFailed
	job.CompletedAt = &now
	job.Error = err
	job.Progress = JobProgress{Phase: "failed", LastUpdate: now}
	s.logger.Error("reconcile job failed", "job_id", jobID, "kind", job.Kind, "error", err)
}

func lockedKinds(kind JobKind) []JobKind {
	if kind == KindAll {
		return []JobKind{KindTransactions, KindBalances}
	}
	return []JobKind{kind}
}

// tryLockKind acquires every lock the kind needs, or none of them.
func (s *ReconcileService) tryLockKind(kind JobKind) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	var held []*sync.Mutex
	for _, k := range lockedKinds(kind) {
		if _, exists := s.kindLocks[k]; !exists {
			s.kindLocks[k] = &sync.Mutex{}
		}
		if !s.kindLocks[k].TryLock() {
			for _, m := range held {
				m.Unlock()
			}
			return false
		}
		held = append(held, s.kindLocks[k])
	}
	return true
}

// releaseJob hands back the job's kind locks unless stale-job handling
// already did.
func (s *ReconcileService) releaseJob(jobID string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && !job.released {
		s.unlockKindUnsafe(job)
	}
}

// unlockKindUnsafe releases the locks taken by tryLockKind.
// MUST only be called while holding jobsMutex.
func (s *ReconcileService) unlockKindUnsafe(job *Job) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	job.released = true
	for _, k := range lockedKinds(job.Kind) {
		if lock, exists := s.kindLocks[k]; exists {
			lock.Unlock()
		}
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (s *ReconcileService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range s.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old reconcile jobs", "removed", removed)
	}
	return removed
}

// MarkStaleJobsAsFailed marks as failed any pending or running job that has
// run longer than maxDuration or has not changed phase within staleThreshold.
// It covers goroutines that panicked or hung without reporting back.
func (s *ReconcileService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0
	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}

		reason := ""
		switch {
		case now.Sub(job.StartedAt) > maxDuration:
			reason = fmt.Sprintf("exceeded max duration of %v (started %v ago)", maxDuration, now.Sub(job.StartedAt).Round(time.Second))
		case now.Sub(job.Progress.LastUpdate) > staleThreshold:
			reason = fmt.Sprintf("no progress update for %v (threshold: %v)", now.Sub(job.Progress.LastUpdate).Round(time.Second), staleThreshold)
		default:
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		lastUpdate := job.Progress.LastUpdate
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress = JobProgress{Phase: "failed", LastUpdate: now}

		if !job.released {
			s.unlockKindUnsafe(job)
		}

		s.logger.Warn("marked stale job as failed",
			"job_id", id,
			"kind", job.Kind,
			"reason", reason,
			"started_at", job.StartedAt,
			"last_update", lastUpdate,
		)
		marked++
	}
	return marked
}

// IsJobStale reports whether a pending or running job is past either threshold.
func (s *ReconcileService) IsJobStale(jobID string, staleThreshold, maxDuration time.Duration) bool {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists || (job.Status != StatusRunning && job.Status != StatusPending) {
		return false
	}
	now := time.Now()
	return now.Sub(job.StartedAt) > maxDuration || now.Sub(job.Progress.LastUpdate) > staleThreshold
}

// StartBackgroundCleanup periodically marks stale jobs as failed and drops
// jobs older than DefaultJobRetention. Call StopBackgroundCleanup to stop it.
func (s *ReconcileService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started",
			"check_interval", checkInterval,
			"stale_threshold", DefaultJobStaleThreshold,
			"max_duration", DefaultJobMaxDuration,
		)

		for {
			select {
			case <-s.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				if n := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); n > 0 {
					s.logger.Info("marked stale jobs as failed", "count", n)
				}
				s.CleanupOldJobs(DefaultJobRetention)
			}
		}
	}()
}

// StopBackgroundCleanup stops the cleanup goroutine and waits for it to exit.
func (s *ReconcileService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
	s.cleanupStop = nil
}
