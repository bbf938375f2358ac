package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mnemo-oss/mnemo/internal/consolidate"
	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/extract"
	"github.com/mnemo-oss/mnemo/internal/fact"
	"github.com/mnemo-oss/mnemo/internal/profile"
	"github.com/mnemo-oss/mnemo/internal/sessionlog"
)

type stubExtractor struct {
	result *extract.Result
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, transcript string) (*extract.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &extract.Result{}, nil
}

func newTestMemory(t *testing.T, ext extract.Extractor) (*Memory, profile.Store, sessionlog.Store) {
	t.Helper()
	profiles := profile.NewMemoryStore()
	log := sessionlog.NewMemoryStore()
	c := consolidate.New(profiles, log, ext, consolidate.Options{})
	s := consolidate.NewScheduler(c, consolidate.SchedulerOptions{})
	return New(profiles, log, s, Options{RecentLimit: 3}), profiles, log
}

// waitForSession polls until the session record lands or the deadline passes.
func waitForSession(t *testing.T, m *Memory, userID, sessionID string) *sessionlog.SessionRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, err := m.GetSession(userID, sessionID); err == nil {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s/%s never appeared in the log", userID, sessionID)
	return nil
}

func TestMemory_SnapshotNewUser(t *testing.T) {
	m, _, _ := newTestMemory(t, &stubExtractor{})
	defer m.Close()

	snap, err := m.Snapshot("u1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Profile.Version != 0 {
		t.Errorf("expected empty default profile at version 0, got %d", snap.Profile.Version)
	}
	if snap.Profile.UserID != "u1" {
		t.Errorf("expected user id u1, got %q", snap.Profile.UserID)
	}
	if len(snap.Recent) != 0 {
		t.Errorf("expected no history, got %d records", len(snap.Recent))
	}
}

func TestMemory_SubmitThenSnapshotObservesFacts(t *testing.T) {
	ext := &stubExtractor{result: &extract.Result{
		Facts:   []fact.Fact{{Subject: "skill:SQL", Assertion: fact.Assertion{Status: "claimed"}, Confidence: 0.9}},
		Summary: "Covered SQL basics",
	}}
	m, _, _ := newTestMemory(t, ext)
	defer m.Close()

	sessionID, err := m.SubmitForConsolidation("u1", "", "USER: I know SQL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if sessionID == "" {
		t.Fatal("expected a generated session id")
	}

	record := waitForSession(t, m, "u1", sessionID)
	if record.ProfileVersionAfter != 1 {
		t.Errorf("expected version 1 after first merge, got %d", record.ProfileVersionAfter)
	}
	if record.Summary != "Covered SQL basics" {
		t.Errorf("unexpected summary %q", record.Summary)
	}

	snap, err := m.Snapshot("u1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Profile.Skills["SQL"].Status != profile.SkillClaimed {
		t.Errorf("snapshot must observe the consolidated skill, got %+v", snap.Profile.Skills)
	}
	if len(snap.Recent) != 1 {
		t.Errorf("expected 1 recent record, got %d", len(snap.Recent))
	}
}

func TestMemory_SnapshotRecentLimit(t *testing.T) {
	m, _, log := newTestMemory(t, &stubExtractor{})
	defer m.Close()

	for i := 0; i < 5; i++ {
		_, err := log.Append(sessionlog.SessionRecord{
			UserID:    "u1",
			SessionID: fmt.Sprintf("s%d", i),
			EndedAt:   time.Now().Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	snap, err := m.Snapshot("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Recent) != 3 {
		t.Fatalf("expected recent limit 3, got %d", len(snap.Recent))
	}
	if snap.Recent[0].SessionID != "s4" {
		t.Errorf("expected most recent first, got %s", snap.Recent[0].SessionID)
	}

	// RecentSessions overrides the snapshot limit.
	records, err := m.RecentSessions("u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Errorf("expected 5 records with an explicit limit, got %d", len(records))
	}
}

func TestMemory_ApplyUserEditCreatesProfile(t *testing.T) {
	m, _, _ := newTestMemory(t, &stubExtractor{})
	defer m.Close()

	role := "ML Engineer"
	p, err := m.ApplyUserEdit("u1", profile.Patch{TargetRole: &role})
	if err != nil {
		t.Fatal(err)
	}
	if p.Version != 1 {
		t.Errorf("expected version 1, got %d", p.Version)
	}
	if p.TargetRole == nil || p.TargetRole.Value != "ML Engineer" {
		t.Errorf("unexpected target role %+v", p.TargetRole)
	}
}

func TestMemory_ApplyUserEditMayRegressSkill(t *testing.T) {
	m, profiles, _ := newTestMemory(t, &stubExtractor{})
	defer m.Close()

	seeded := profile.New("u1")
	now := time.Now().UTC()
	seeded.Skills["Go"] = profile.Skill{Status: profile.SkillValidated, UpdatedAt: now, ValidatedAt: &now}
	if _, err := profiles.CompareAndSet("u1", 0, seeded); err != nil {
		t.Fatal(err)
	}

	claimed := profile.SkillClaimed
	p, err := m.ApplyUserEdit("u1", profile.Patch{
		Skills: map[string]profile.SkillPatch{"Go": {Status: &claimed}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Skills["Go"].Status != profile.SkillClaimed {
		t.Errorf("explicit edit must be allowed to regress status, got %s", p.Skills["Go"].Status)
	}
	if p.Skills["Go"].ValidatedAt != nil {
		t.Error("regression must clear the completion timestamp")
	}
}

func TestMemory_ApplyUserEditEmptyPatch(t *testing.T) {
	m, _, _ := newTestMemory(t, &stubExtractor{})
	defer m.Close()

	_, err := m.ApplyUserEdit("u1", profile.Patch{})
	if !memErrors.HasCode(err, memErrors.CodeConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID for empty patch, got %v", err)
	}
}

// racingStore sneaks a concurrent commit in between the edit's read and its
// compare-and-set, so the single-shot edit path hits a real conflict.
type racingStore struct {
	profile.Store
	raced bool
}

func (s *racingStore) Get(userID string) (*profile.Profile, error) {
	p, err := s.Store.Get(userID)
	if err == nil && !s.raced {
		s.raced = true
		racer := p.Clone()
		if _, casErr := s.Store.CompareAndSet(userID, p.Version, racer); casErr != nil {
			return nil, casErr
		}
	}
	return p, err
}

func TestMemory_ApplyUserEditConflictRejected(t *testing.T) {
	profiles := profile.NewMemoryStore()
	if _, err := profiles.CompareAndSet("u1", 0, profile.New("u1")); err != nil {
		t.Fatal(err)
	}
	store := &racingStore{Store: profiles}
	log := sessionlog.NewMemoryStore()
	c := consolidate.New(store, log, &stubExtractor{}, consolidate.Options{})
	s := consolidate.NewScheduler(c, consolidate.SchedulerOptions{})
	m := New(store, log, s, Options{})
	defer m.Close()

	role := "ML Engineer"
	_, err := m.ApplyUserEdit("u1", profile.Patch{TargetRole: &role})
	if !memErrors.HasCode(err, memErrors.CodeEditRejected) {
		t.Fatalf("expected EDIT_REJECTED on concurrent commit, got %v", err)
	}

	// A retry against fresh data succeeds.
	p, err := m.ApplyUserEdit("u1", profile.Patch{TargetRole: &role})
	if err != nil {
		t.Fatal(err)
	}
	if p.TargetRole.Value != "ML Engineer" {
		t.Errorf("retry must apply, got %+v", p.TargetRole)
	}
}

func TestMemory_DeleteProfileKeepsHistory(t *testing.T) {
	ext := &stubExtractor{result: &extract.Result{
		Facts: []fact.Fact{{Subject: "skill:SQL", Assertion: fact.Assertion{Status: "claimed"}, Confidence: 0.9}},
	}}
	m, _, _ := newTestMemory(t, ext)
	defer m.Close()

	sessionID, err := m.SubmitForConsolidation("u1", "s1", "transcript", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	waitForSession(t, m, "u1", sessionID)

	if err := m.DeleteProfile("u1"); err != nil {
		t.Fatal(err)
	}

	snap, err := m.Snapshot("u1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Profile.Version != 0 {
		t.Errorf("expected empty default after deletion, got version %d", snap.Profile.Version)
	}
	if len(snap.Recent) != 1 {
		t.Errorf("history must survive profile deletion, got %d records", len(snap.Recent))
	}
}

func TestMemory_HistoryCursor(t *testing.T) {
	m, _, log := newTestMemory(t, &stubExtractor{})
	defer m.Close()

	for i := 0; i < 4; i++ {
		_, err := log.Append(sessionlog.SessionRecord{
			UserID:    "u1",
			SessionID: fmt.Sprintf("s%d", i),
			EndedAt:   time.Now().Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	cursor, err := m.History("u1")
	if err != nil {
		t.Fatal(err)
	}
	defer cursor.Close()

	var ids []string
	for cursor.Next() {
		ids = append(ids, cursor.Record().SessionID)
	}
	if err := cursor.Err(); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 4 || ids[0] != "s0" || ids[3] != "s3" {
		t.Errorf("expected chronological order s0..s3, got %v", ids)
	}
}
