package consolidate

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/telemetry"
)

// Scheduler runs consolidation jobs on a background path decoupled from the
// interactive cycle. Jobs are serialized per user: one goroutine owns each
// user's queue, so at most one consolidation per user executes at a time
// while different users run fully in parallel.
type Scheduler struct {
	consolidator *Consolidator
	logger       *telemetry.Logger
	queueDepth   int
	jobTimeout   time.Duration
	maxRequeues  int

	mu     sync.Mutex
	queues map[string]chan Job
	closed bool
	group  *errgroup.Group
	ctx    context.Context
}

// SchedulerOptions configures the background scheduling path.
type SchedulerOptions struct {
	QueueDepth  int           // per-user queue capacity
	JobTimeout  time.Duration // overall deadline per job
	MaxRequeues int           // re-enqueues after an abandoned deadline
	Logger      *telemetry.Logger
}

const (
	defaultQueueDepth  = 32
	defaultJobTimeout  = 2 * time.Minute
	defaultMaxRequeues = 1
)

// NewScheduler creates a scheduler over the consolidator. Close drains all
// queued work before returning.
func NewScheduler(c *Consolidator, opts SchedulerOptions) *Scheduler {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = defaultQueueDepth
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	if opts.MaxRequeues < 0 {
		opts.MaxRequeues = defaultMaxRequeues
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}

	group, ctx := errgroup.WithContext(context.Background())
	return &Scheduler{
		consolidator: c,
		logger:       logger,
		queueDepth:   opts.QueueDepth,
		jobTimeout:   opts.JobTimeout,
		maxRequeues:  opts.MaxRequeues,
		queues:       make(map[string]chan Job),
		group:        group,
		ctx:          ctx,
	}
}

// Submit enqueues a job and returns immediately. The work is guaranteed to
// eventually run (or be re-enqueued on an abandoned deadline) unless the
// scheduler is closed or the user's queue is full.
func (s *Scheduler) Submit(job Job) error {
	if job.UserID == "" || job.SessionID == "" {
		return memErrors.New(memErrors.CodeConfigInvalid, "job requires a user id and a session id")
	}

	// Held across the send so Close cannot close the channel mid-submit.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("scheduler is closed")
	}
	queue, ok := s.queues[job.UserID]
	if !ok {
		queue = make(chan Job, s.queueDepth)
		s.queues[job.UserID] = queue
		s.group.Go(func() error {
			s.runQueue(job.UserID, queue)
			return nil
		})
	}

	select {
	case queue <- job:
		return nil
	default:
		return memErrors.New(memErrors.CodeTimeout, "consolidation queue full for user "+job.UserID).
			WithSuggestion("resubmit once in-flight sessions drain")
	}
}

// runQueue is the single worker for one user's jobs. It exits when the
// queue is closed and drained.
func (s *Scheduler) runQueue(userID string, queue chan Job) {
	for job := range queue {
		s.runJob(job)
	}
}

func (s *Scheduler) runJob(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()

	tc := telemetry.NewTraceContext(job.SessionID).WithUser(job.UserID).WithSession(job.SessionID)
	ctx = telemetry.ContextWithTrace(ctx, tc)

	_, err := s.consolidator.Run(ctx, job)
	if err == nil {
		return
	}

	switch {
	case memErrors.HasCode(err, memErrors.CodeConsolidationConflict):
		// Already flagged in the session log; nothing to re-run.
		s.logger.Warn("Consolidation flagged for reconciliation",
			"user_id", job.UserID, "session_id", job.SessionID)
	case errors.Is(err, context.DeadlineExceeded):
		// Abandoned, not half-applied: compare-and-set means no partial
		// profile mutation survived. Reschedule within the requeue budget.
		if job.Attempts < s.maxRequeues {
			job.Attempts++
			s.requeue(job)
			return
		}
		s.logger.Error("Consolidation abandoned after deadline",
			"user_id", job.UserID, "session_id", job.SessionID, "attempts", job.Attempts)
	default:
		s.logger.Error("Consolidation failed",
			"user_id", job.UserID, "session_id", job.SessionID, "error", err)
	}
}

func (s *Scheduler) requeue(job Job) {
	// Held across the send so Close cannot close the channel mid-requeue.
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.queues[job.UserID]
	if s.closed || !ok {
		s.logger.Error("Dropping job, scheduler closed during requeue",
			"user_id", job.UserID, "session_id", job.SessionID)
		return
	}

	select {
	case queue <- job:
		s.logger.Info("Rescheduled consolidation after abandoned deadline",
			"user_id", job.UserID, "session_id", job.SessionID, "attempt", job.Attempts)
	default:
		s.logger.Error("Dropping job, queue full during requeue",
			"user_id", job.UserID, "session_id", job.SessionID)
	}
}

// Pending reports how many jobs are queued across all users. In-flight jobs
// are not counted.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, queue := range s.queues {
		total += len(queue)
	}
	return total
}

// Close stops accepting new jobs, drains every queue, and waits for all
// workers to finish.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, queue := range s.queues {
		close(queue)
	}
	s.mu.Unlock()

	return s.group.Wait()
}
