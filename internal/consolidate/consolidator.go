package consolidate

import (
	"context"
	"time"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/event"
	"github.com/mnemo-oss/mnemo/internal/extract"
	"github.com/mnemo-oss/mnemo/internal/profile"
	"github.com/mnemo-oss/mnemo/internal/sessionlog"
	"github.com/mnemo-oss/mnemo/internal/telemetry"
)

// Job is one consolidation unit of work: a completed session transcript
// waiting to become durable profile state.
type Job struct {
	UserID     string
	SessionID  string
	Transcript string
	StartedAt  time.Time
	EndedAt    time.Time

	// Attempts counts scheduler re-enqueues after an abandoned deadline.
	Attempts int
}

// Options configures a Consolidator. Zero values fall back to defaults.
type Options struct {
	Rules      MergeRules
	MaxRetries int // compare-and-set retries after the first failed attempt
	Logger     *telemetry.Logger
	Metrics    *telemetry.Metrics
	Bus        *event.Bus
}

// Consolidator turns a transcript into durable profile state exactly once
// per session. It is the only writer to both the profile store and the
// session log; per-user serialization is the scheduler's job.
type Consolidator struct {
	profiles   profile.Store
	log        sessionlog.Store
	extractor  extract.Extractor
	rules      MergeRules
	maxRetries int
	logger     *telemetry.Logger
	metrics    *telemetry.Metrics
	bus        *event.Bus
	now        func() time.Time
}

const defaultMaxRetries = 3

// New creates a Consolidator over the given stores and extractor.
func New(profiles profile.Store, log sessionlog.Store, extractor extract.Extractor, opts Options) *Consolidator {
	rules := opts.Rules
	if rules.ConfidenceThreshold == 0 {
		rules.ConfidenceThreshold = DefaultRules().ConfidenceThreshold
	}
	if rules.Policy == "" {
		rules.Policy = PolicyLastWins
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}

	return &Consolidator{
		profiles:   profiles,
		log:        log,
		extractor:  extractor,
		rules:      rules,
		maxRetries: maxRetries,
		logger:     logger,
		metrics:    metrics,
		bus:        opts.Bus,
		now:        time.Now,
	}
}

// Run executes one consolidation job and returns the session record it
// produced (or the existing record, when the session was already
// consolidated). A nil record with a nil error means the job was abandoned
// because the user no longer exists.
func (c *Consolidator) Run(ctx context.Context, job Job) (*sessionlog.SessionRecord, error) {
	logger := c.logger.WithTrace(ctx)

	// Idempotency: a session that already has a logged record is done.
	// The scheduler may resubmit after a crash or restart.
	if existing, err := c.log.Get(job.UserID, job.SessionID); err == nil {
		logger.Debug("Session already consolidated",
			"user_id", job.UserID, "session_id", job.SessionID,
			"profile_version_after", existing.ProfileVersionAfter)
		return existing, nil
	} else if !memErrors.HasCode(err, memErrors.CodeNotFound) {
		return nil, err
	}

	start := c.now()
	c.metrics.IncJobsStarted()
	c.emit(event.ConsolidationStarted, job, nil)
	defer func() { c.metrics.RecordJobDuration(c.now().Sub(start)) }()

	base, err := c.fetchBase(job.UserID)
	if err != nil {
		c.metrics.IncJobsFailed()
		return nil, err
	}

	result, err := c.runExtraction(ctx, job)
	if err != nil {
		// A session is never silently lost: log it with an empty fact set
		// and the failure note. The profile stays untouched.
		record := c.newRecord(job)
		record.ExtractionError = err.Error()
		return c.appendRecord(record, "")
	}

	record := c.newRecord(job)
	record.Summary = result.Summary
	record.Note = result.Note

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.emit(event.ConsolidationRetry, job, map[string]interface{}{"attempt": attempt})
			// Re-merge against the fresh base, never the stale working copy.
			base, err = c.refetchBase(job)
			if err != nil {
				c.metrics.IncJobsFailed()
				return nil, err
			}
			if base == nil {
				return nil, nil // user deleted mid-job
			}
		}

		merged, outcomes, changed := Merge(base, result.Facts, job.SessionID, c.now(), c.rules)
		record.Facts = outcomes

		if !changed {
			// Nothing survived the rules; the record still carries every
			// rejected fact and its reason.
			return c.appendRecord(record, "")
		}

		if result.Note != "" {
			merged.AddNote(profile.Note{Text: result.Note, SessionID: job.SessionID, CreatedAt: c.now()})
		}

		committed, casErr := c.profiles.CompareAndSet(job.UserID, base.Version, merged)
		if casErr == nil {
			record.ProfileVersionAfter = committed.Version
			return c.appendRecord(record, "")
		}

		switch memErrors.AsCode(casErr) {
		case memErrors.CodeVersionConflict:
			continue
		case memErrors.CodeNotFound:
			// User deleted while the job was running: abort cleanly.
			logger.Warn("User deleted mid-consolidation, abandoning job",
				"user_id", job.UserID, "session_id", job.SessionID)
			c.metrics.IncJobsFailed()
			return nil, nil
		default:
			c.metrics.IncJobsFailed()
			return nil, casErr
		}
	}

	// Retry budget exhausted: the session is preserved and flagged for
	// operator reconciliation, never silently dropped.
	record.ProfileVersionAfter = 0
	record.NeedsReconciliation = true
	conflictErr := memErrors.New(memErrors.CodeConsolidationConflict,
		"compare-and-set retry budget exhausted").
		WithSuggestion("run 'mnemo reconcile' to inspect flagged sessions")

	appended, appendErr := c.appendRecord(record, memErrors.CodeConsolidationConflict)
	if appendErr != nil {
		return nil, appendErr
	}
	return appended, conflictErr
}

// fetchBase returns the current profile, or an empty default at version 0
// when the user has none yet.
func (c *Consolidator) fetchBase(userID string) (*profile.Profile, error) {
	p, err := c.profiles.Get(userID)
	if err == nil {
		return p, nil
	}
	if memErrors.HasCode(err, memErrors.CodeNotFound) {
		return profile.New(userID), nil
	}
	return nil, err
}

// refetchBase re-reads the profile after a version conflict. A missing
// profile here means the user was deleted mid-job (the conflict proves the
// profile existed moments ago); the caller abandons the job.
func (c *Consolidator) refetchBase(job Job) (*profile.Profile, error) {
	p, err := c.profiles.Get(job.UserID)
	if err == nil {
		return p, nil
	}
	if memErrors.HasCode(err, memErrors.CodeNotFound) {
		c.logger.Warn("User deleted mid-consolidation, abandoning job",
			"user_id", job.UserID, "session_id", job.SessionID)
		return nil, nil
	}
	return nil, err
}

func (c *Consolidator) runExtraction(ctx context.Context, job Job) (*extract.Result, error) {
	start := c.now()
	result, err := c.extractor.Extract(ctx, job.Transcript)
	c.metrics.RecordExtractionLatency(c.now().Sub(start))

	if err != nil {
		c.metrics.IncExtractionsFailed()
		c.emit(event.ExtractionFailed, job, map[string]interface{}{"error": err.Error()})
		c.logger.Warn("Extraction failed, logging session with empty fact set",
			"user_id", job.UserID, "session_id", job.SessionID, "error", err)
		return nil, err
	}
	return result, nil
}

func (c *Consolidator) newRecord(job Job) sessionlog.SessionRecord {
	endedAt := job.EndedAt
	if endedAt.IsZero() {
		endedAt = c.now()
	}
	startedAt := job.StartedAt
	if startedAt.IsZero() {
		startedAt = endedAt
	}
	return sessionlog.SessionRecord{
		SessionID: job.SessionID,
		UserID:    job.UserID,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Facts:     []sessionlog.FactOutcome{},
	}
}

// appendRecord commits the record and emits the closing lifecycle events.
// outcome names the terminal state for metrics: "" for a normal finish,
// CONSOLIDATION_CONFLICT for a flagged one.
func (c *Consolidator) appendRecord(record sessionlog.SessionRecord, outcome string) (*sessionlog.SessionRecord, error) {
	appended, err := c.log.Append(record)
	if err != nil {
		c.metrics.IncJobsFailed()
		return nil, err
	}

	job := Job{UserID: record.UserID, SessionID: record.SessionID}
	c.emit(event.SessionLogged, job, map[string]interface{}{
		"profile_version_after": appended.ProfileVersionAfter,
	})

	if outcome == memErrors.CodeConsolidationConflict {
		c.metrics.IncJobsConflicted()
		c.emit(event.ConsolidationConflict, job, nil)
		return appended, nil
	}

	c.metrics.IncJobsApplied()
	c.emit(event.ConsolidationApplied, job, map[string]interface{}{
		"applied_facts":         len(appended.AppliedFacts()),
		"rejected_facts":        len(appended.Facts) - len(appended.AppliedFacts()),
		"profile_version_after": appended.ProfileVersionAfter,
	})
	return appended, nil
}

func (c *Consolidator) emit(t event.EventType, job Job, extra map[string]interface{}) {
	data := map[string]interface{}{
		"user_id":    job.UserID,
		"session_id": job.SessionID,
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := c.bus.Emit(event.NewEvent(t, data)); err != nil {
		c.logger.Warn("Event hook failed", "event", string(t), "error", err)
	}
}
