package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-oss/mnemo/internal/consolidate"
	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/event"
	"github.com/mnemo-oss/mnemo/internal/profile"
	"github.com/mnemo-oss/mnemo/internal/sessionlog"
	"github.com/mnemo-oss/mnemo/internal/telemetry"
)

// Snapshot is the session-start context: the current profile plus the most
// recent session records.
type Snapshot struct {
	Profile *profile.Profile           `json:"profile"`
	Recent  []sessionlog.SessionRecord `json:"recent_sessions"`
}

// Memory is the single entry point other subsystems use. Reads never block
// on in-flight consolidation; writes either go through the background
// scheduler (transcripts) or a single compare-and-set (user edits).
type Memory struct {
	profiles    profile.Store
	log         sessionlog.Store
	scheduler   *consolidate.Scheduler
	recentLimit int
	logger      *telemetry.Logger
	metrics     *telemetry.Metrics
	bus         *event.Bus
	now         func() time.Time
}

// Options configures the façade. Zero values fall back to defaults.
type Options struct {
	RecentLimit int // session records returned by Snapshot
	Logger      *telemetry.Logger
	Metrics     *telemetry.Metrics
	Bus         *event.Bus
}

const defaultRecentLimit = 5

// New creates the façade over the stores and the background scheduler.
func New(profiles profile.Store, log sessionlog.Store, scheduler *consolidate.Scheduler, opts Options) *Memory {
	recentLimit := opts.RecentLimit
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}

	return &Memory{
		profiles:    profiles,
		log:         log,
		scheduler:   scheduler,
		recentLimit: recentLimit,
		logger:      logger,
		metrics:     metrics,
		bus:         opts.Bus,
		now:         time.Now,
	}
}

// Snapshot returns the context a new session starts from. A user with no
// profile yet gets an empty default at version 0 rather than an error, so
// session start never fails on a first-time user.
func (m *Memory) Snapshot(userID string) (*Snapshot, error) {
	p, err := m.profiles.Get(userID)
	if err != nil {
		if !memErrors.HasCode(err, memErrors.CodeNotFound) {
			return nil, err
		}
		p = profile.New(userID)
	}

	recent, err := m.log.ReadRecent(userID, m.recentLimit)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Profile: p, Recent: recent}, nil
}

// SubmitForConsolidation enqueues a completed session transcript and returns
// immediately; the consolidator runs on the background path. An empty
// sessionID gets a generated one, returned to the caller for later lookup.
func (m *Memory) SubmitForConsolidation(userID, sessionID, transcript string, startedAt, endedAt time.Time) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if endedAt.IsZero() {
		endedAt = m.now()
	}

	err := m.scheduler.Submit(consolidate.Job{
		UserID:     userID,
		SessionID:  sessionID,
		Transcript: transcript,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
	})
	if err != nil {
		return sessionID, err
	}

	m.logger.Debug("Session submitted for consolidation",
		"user_id", userID, "session_id", sessionID, "transcript_bytes", len(transcript))
	return sessionID, nil
}

// ApplyUserEdit mutates the profile directly, bypassing extraction. The edit
// goes through a single compare-and-set: losing the race to a concurrent
// consolidation surfaces EDIT_REJECTED so the caller retries against fresh
// data, rather than silently clobbering the newer state.
func (m *Memory) ApplyUserEdit(userID string, patch profile.Patch) (*profile.Profile, error) {
	if patch.IsEmpty() {
		return nil, memErrors.New(memErrors.CodeConfigInvalid, "edit changes nothing")
	}

	base, err := m.profiles.Get(userID)
	if err != nil {
		if !memErrors.HasCode(err, memErrors.CodeNotFound) {
			return nil, err
		}
		base = profile.New(userID)
	}

	editID := "edit-" + uuid.NewString()
	working := base.Clone()
	if err := working.ApplyPatch(patch, editID, m.now()); err != nil {
		return nil, memErrors.Wrap(memErrors.CodeConfigInvalid, "invalid edit", err)
	}

	committed, err := m.profiles.CompareAndSet(userID, base.Version, working)
	if err != nil {
		if memErrors.HasCode(err, memErrors.CodeVersionConflict) {
			m.metrics.IncEditsRejected()
			m.emit(event.EditRejected, userID, map[string]interface{}{"edit_id": editID})
			return nil, memErrors.Wrap(memErrors.CodeEditRejected, "profile changed since it was read", err).
				WithSuggestion("take a fresh snapshot and retry the edit")
		}
		return nil, err
	}

	m.metrics.IncEditsApplied()
	m.emit(event.EditApplied, userID, map[string]interface{}{
		"edit_id": editID,
		"version": committed.Version,
	})
	return committed, nil
}

// RecentSessions returns the user's most recent session records, newest
// first, independent of the snapshot's configured limit.
func (m *Memory) RecentSessions(userID string, limit int) ([]sessionlog.SessionRecord, error) {
	if limit <= 0 {
		limit = m.recentLimit
	}
	return m.log.ReadRecent(userID, limit)
}

// GetSession returns one session record, for audits and reconciliation.
func (m *Memory) GetSession(userID, sessionID string) (*sessionlog.SessionRecord, error) {
	return m.log.Get(userID, sessionID)
}

// History returns a cursor over the full chronological session history.
func (m *Memory) History(userID string) (sessionlog.Cursor, error) {
	return m.log.ReadAll(userID)
}

// FlaggedSessions returns records whose merge exhausted its retry budget,
// oldest first.
func (m *Memory) FlaggedSessions(userID string) ([]sessionlog.SessionRecord, error) {
	return m.log.ListFlagged(userID)
}

// DeleteProfile removes the user's current-state profile. In-flight
// consolidation for the user notices the missing profile and aborts; the
// session history stays, it is provenance, not current state.
func (m *Memory) DeleteProfile(userID string) error {
	if err := m.profiles.Delete(userID); err != nil {
		return err
	}
	m.logger.Info("Profile deleted", "user_id", userID)
	return nil
}

// Close drains in-flight consolidation, then releases the stores.
func (m *Memory) Close() error {
	var firstErr error
	if err := m.scheduler.Close(); err != nil {
		firstErr = err
	}
	if err := m.log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.profiles.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (m *Memory) emit(t event.EventType, userID string, extra map[string]interface{}) {
	data := map[string]interface{}{"user_id": userID}
	for k, v := range extra {
		data[k] = v
	}
	if err := m.bus.Emit(event.NewEvent(t, data)); err != nil {
		m.logger.Warn("Event hook failed", "event", string(t), "error", err)
	}
}
