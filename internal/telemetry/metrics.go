package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects consolidation pipeline metrics.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	JobsStarted       int64
	JobsApplied       int64
	JobsConflicted    int64
	JobsFailed        int64
	ExtractionsFailed int64
	EditsApplied      int64
	EditsRejected     int64

	// Gauges
	ActiveJobs int64

	// Histograms (simplified)
	jobDurations        []time.Duration
	extractionLatencies []time.Duration

	// Exporter (optional)
	exporter MetricsExporter
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		jobDurations:        make([]time.Duration, 0, 1000),
		extractionLatencies: make([]time.Duration, 0, 1000),
	}
}

// IncJobsStarted increments the consolidation-jobs-started counter.
func (m *Metrics) IncJobsStarted() {
	atomic.AddInt64(&m.JobsStarted, 1)
	atomic.AddInt64(&m.ActiveJobs, 1)
}

// IncJobsApplied increments the applied counter.
func (m *Metrics) IncJobsApplied() {
	atomic.AddInt64(&m.JobsApplied, 1)
	atomic.AddInt64(&m.ActiveJobs, -1)
}

// IncJobsConflicted counts jobs whose compare-and-set budget was exhausted.
func (m *Metrics) IncJobsConflicted() {
	atomic.AddInt64(&m.JobsConflicted, 1)
	atomic.AddInt64(&m.ActiveJobs, -1)
}

// IncJobsFailed increments the failed counter.
func (m *Metrics) IncJobsFailed() {
	atomic.AddInt64(&m.JobsFailed, 1)
	atomic.AddInt64(&m.ActiveJobs, -1)
}

// IncExtractionsFailed counts failed extraction calls.
func (m *Metrics) IncExtractionsFailed() {
	atomic.AddInt64(&m.ExtractionsFailed, 1)
}

// IncEditsApplied counts successful user edits.
func (m *Metrics) IncEditsApplied() {
	atomic.AddInt64(&m.EditsApplied, 1)
}

// IncEditsRejected counts user edits rejected on version conflict.
func (m *Metrics) IncEditsRejected() {
	atomic.AddInt64(&m.EditsRejected, 1)
}

// RecordJobDuration records a consolidation job duration.
func (m *Metrics) RecordJobDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobDurations = append(m.jobDurations, d)
}

// RecordExtractionLatency records an extraction call latency.
func (m *Metrics) RecordExtractionLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractionLatencies = append(m.extractionLatencies, d)
}

// GetSummary returns a summary of collected metrics.
func (m *Metrics) GetSummary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := map[string]interface{}{
		"jobs_started":       atomic.LoadInt64(&m.JobsStarted),
		"jobs_applied":       atomic.LoadInt64(&m.JobsApplied),
		"jobs_conflicted":    atomic.LoadInt64(&m.JobsConflicted),
		"jobs_failed":        atomic.LoadInt64(&m.JobsFailed),
		"extractions_failed": atomic.LoadInt64(&m.ExtractionsFailed),
		"edits_applied":      atomic.LoadInt64(&m.EditsApplied),
		"edits_rejected":     atomic.LoadInt64(&m.EditsRejected),
		"active_jobs":        atomic.LoadInt64(&m.ActiveJobs),
	}

	if len(m.jobDurations) > 0 {
		var total time.Duration
		for _, d := range m.jobDurations {
			total += d
		}
		summary["avg_job_duration_ms"] = total.Milliseconds() / int64(len(m.jobDurations))
	}

	if len(m.extractionLatencies) > 0 {
		var total time.Duration
		for _, d := range m.extractionLatencies {
			total += d
		}
		summary["avg_extraction_latency_ms"] = total.Milliseconds() / int64(len(m.extractionLatencies))
	}

	return summary
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	atomic.StoreInt64(&m.JobsStarted, 0)
	atomic.StoreInt64(&m.JobsApplied, 0)
	atomic.StoreInt64(&m.JobsConflicted, 0)
	atomic.StoreInt64(&m.JobsFailed, 0)
	atomic.StoreInt64(&m.ExtractionsFailed, 0)
	atomic.StoreInt64(&m.EditsApplied, 0)
	atomic.StoreInt64(&m.EditsRejected, 0)
	atomic.StoreInt64(&m.ActiveJobs, 0)

	m.jobDurations = m.jobDurations[:0]
	m.extractionLatencies = m.extractionLatencies[:0]
}

// SetExporter attaches a metrics exporter.
func (m *Metrics) SetExporter(e MetricsExporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exporter = e
}

// Flush exports the current metrics snapshot with the given event label.
func (m *Metrics) Flush(event string, labels map[string]string) {
	m.mu.RLock()
	exporter := m.exporter
	m.mu.RUnlock()

	if exporter == nil {
		return
	}

	snapshot := MetricsSnapshot{
		Timestamp: time.Now(),
		Event:     event,
		Metrics:   m.GetSummary(),
		Labels:    labels,
	}
	// Best-effort export.
	_ = exporter.Export(snapshot)
}
