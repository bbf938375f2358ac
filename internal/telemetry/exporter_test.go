package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJSONFileExporter_Export(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".mnemo", "metrics.jsonl")

	exporter, err := NewJSONFileExporter(path)
	if err != nil {
		t.Fatal(err)
	}
	defer exporter.Close()

	snapshot := MetricsSnapshot{
		Timestamp: time.Now(),
		Event:     "consolidation.applied",
		Metrics: map[string]interface{}{
			"jobs_applied": int64(5),
			"jobs_started": int64(6),
		},
		Labels: map[string]string{
			"user":    "user-1",
			"session": "sess-1",
		},
	}

	if err := exporter.Export(snapshot); err != nil {
		t.Fatal(err)
	}

	// Write another snapshot
	snapshot.Event = "consolidation.conflict"
	if err := exporter.Export(snapshot); err != nil {
		t.Fatal(err)
	}

	exporter.Close()

	// Read and verify
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	lines := splitLines(string(data))
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}

	var parsed MetricsSnapshot
	if err := json.Unmarshal([]byte(lines[0]), &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Event != "consolidation.applied" {
		t.Errorf("expected event 'consolidation.applied', got %q", parsed.Event)
	}
}

func TestMetrics_FlushWithExporter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.jsonl")

	exporter, err := NewJSONFileExporter(path)
	if err != nil {
		t.Fatal(err)
	}

	m := NewMetrics()
	m.SetExporter(exporter)
	m.IncJobsStarted()
	m.IncJobsApplied()

	m.Flush("consolidation.applied", map[string]string{"user": "u"})
	exporter.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(data) == 0 {
		t.Error("expected non-empty metrics file")
	}

	var snapshot MetricsSnapshot
	if err := json.Unmarshal(data[:len(data)-1], &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.Event != "consolidation.applied" {
		t.Errorf("expected event 'consolidation.applied', got %q", snapshot.Event)
	}
}

func TestMetrics_FlushWithoutExporter(t *testing.T) {
	m := NewMetrics()
	// Should not panic
	m.Flush("test", nil)
}

func TestMetrics_Summary(t *testing.T) {
	m := NewMetrics()
	m.IncJobsStarted()
	m.IncJobsStarted()
	m.IncJobsApplied()
	m.IncJobsConflicted()
	m.IncExtractionsFailed()
	m.RecordJobDuration(20 * time.Millisecond)
	m.RecordExtractionLatency(100 * time.Millisecond)

	s := m.GetSummary()
	if s["jobs_started"] != int64(2) {
		t.Errorf("expected 2 jobs started, got %v", s["jobs_started"])
	}
	if s["jobs_applied"] != int64(1) {
		t.Errorf("expected 1 job applied, got %v", s["jobs_applied"])
	}
	if s["active_jobs"] != int64(0) {
		t.Errorf("expected 0 active jobs, got %v", s["active_jobs"])
	}
	if s["extractions_failed"] != int64(1) {
		t.Errorf("expected 1 failed extraction, got %v", s["extractions_failed"])
	}
	if _, ok := s["avg_job_duration_ms"]; !ok {
		t.Error("expected avg_job_duration_ms in summary")
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
