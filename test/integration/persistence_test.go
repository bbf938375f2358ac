//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mnemo-oss/mnemo/internal/consolidate"
	"github.com/mnemo-oss/mnemo/internal/extract"
	"github.com/mnemo-oss/mnemo/internal/fact"
	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/mnemo-oss/mnemo/internal/profile"
	"github.com/mnemo-oss/mnemo/internal/sessionlog"
)

type scriptedExtractor struct {
	results map[string]*extract.Result
}

func (s *scriptedExtractor) Extract(ctx context.Context, transcript string) (*extract.Result, error) {
	if r, ok := s.results[transcript]; ok {
		return r, nil
	}
	return &extract.Result{}, nil
}

func openMemory(t *testing.T, dbPath string, extractor extract.Extractor) *memory.Memory {
	t.Helper()

	profiles, err := profile.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	log, err := sessionlog.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}

	consolidator := consolidate.New(profiles, log, extractor, consolidate.Options{})
	scheduler := consolidate.NewScheduler(consolidator, consolidate.SchedulerOptions{})
	return memory.New(profiles, log, scheduler, memory.Options{})
}

func TestMemoryPersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "memory.db")

	extractor := &scriptedExtractor{results: map[string]*extract.Result{
		"first session": {
			Facts: []fact.Fact{{
				Subject:    "skill:go",
				Assertion:  fact.Assertion{Value: "practiced goroutines", Status: "in-progress"},
				Confidence: 0.9,
			}},
			Summary: "worked through goroutine basics",
		},
		"second session": {
			Facts: []fact.Fact{{
				Subject:    "targetRole",
				Assertion:  fact.Assertion{Value: "Backend Engineer"},
				Confidence: 0.8,
			}},
			Summary: "talked career direction",
		},
	}}

	// Run 1: consolidate two sessions, then close.
	mem1 := openMemory(t, dbPath, extractor)
	if _, err := mem1.SubmitForConsolidation("alice", "s1", "first session", time.Now(), time.Time{}); err != nil {
		t.Fatal(err)
	}
	if _, err := mem1.SubmitForConsolidation("alice", "s2", "second session", time.Now(), time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := mem1.Close(); err != nil {
		t.Fatal(err)
	}

	// Run 2: a fresh instance over the same file sees the consolidated state.
	mem2 := openMemory(t, dbPath, extractor)
	defer mem2.Close()

	snap, err := mem2.Snapshot("alice")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Profile.Version != 2 {
		t.Errorf("expected profile version 2 after two sessions, got %d", snap.Profile.Version)
	}
	if _, ok := snap.Profile.Skills["go"]; !ok {
		t.Error("expected skill go to survive the restart")
	}
	if snap.Profile.TargetRole == nil || snap.Profile.TargetRole.Value != "Backend Engineer" {
		t.Errorf("expected target role to survive the restart, got %+v", snap.Profile.TargetRole)
	}
	if len(snap.Recent) != 2 {
		t.Errorf("expected 2 recent sessions, got %d", len(snap.Recent))
	}

	// Resubmitting a consolidated session after a restart is a no-op.
	if _, err := mem2.SubmitForConsolidation("alice", "s1", "first session", time.Now(), time.Time{}); err != nil {
		t.Fatal(err)
	}
}

func TestUserEditPersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "memory.db")

	mem1 := openMemory(t, dbPath, &scriptedExtractor{})
	role := "Platform Engineer"
	if _, err := mem1.ApplyUserEdit("bob", profile.Patch{TargetRole: &role}); err != nil {
		t.Fatal(err)
	}
	if err := mem1.Close(); err != nil {
		t.Fatal(err)
	}

	mem2 := openMemory(t, dbPath, &scriptedExtractor{})
	defer mem2.Close()

	snap, err := mem2.Snapshot("bob")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Profile.TargetRole == nil || snap.Profile.TargetRole.Value != role {
		t.Errorf("expected edited target role after restart, got %+v", snap.Profile.TargetRole)
	}
}
