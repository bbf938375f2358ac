package config

import "time"

// Config represents the main project configuration (mnemo.yaml)
type Config struct {
	Name          string              `yaml:"name" json:"name"`
	Version       string              `yaml:"version" json:"version"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Consolidation ConsolidationConfig `yaml:"consolidation" json:"consolidation"`
	Extractor     ExtractorConfig     `yaml:"extractor" json:"extractor"`
	Snapshot      SnapshotConfig      `yaml:"snapshot" json:"snapshot"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Hooks         HooksConfig         `yaml:"hooks" json:"hooks"`
}

// StorageConfig configures the profile store and session log.
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite, memory
	Path   string `yaml:"path" json:"path"`     // sqlite file path
}

// ConsolidationConfig tunes the background merge pipeline.
type ConsolidationConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	MaxRetries          int     `yaml:"max_retries" json:"max_retries"`   // compare-and-set retries
	JobTimeout          string  `yaml:"job_timeout" json:"job_timeout"`   // e.g., "2m"
	QueueDepth          int     `yaml:"queue_depth" json:"queue_depth"`   // per-user queue capacity
	MaxRequeues         int     `yaml:"max_requeues" json:"max_requeues"` // reschedules after an abandoned deadline
	Policy              string  `yaml:"policy" json:"policy"`             // last-wins, first-wins
}

// ExtractorConfig configures the external fact-extraction service.
type ExtractorConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Model   string `yaml:"model" json:"model"`
	Timeout string `yaml:"timeout" json:"timeout"` // per HTTP call, e.g., "30s"
}

// SnapshotConfig bounds the session-start context.
type SnapshotConfig struct {
	RecentLimit int `yaml:"recent_limit" json:"recent_limit"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
	File   string `yaml:"file,omitempty" json:"file,omitempty"`

	// MetricsFile, when set, receives a JSONL metrics snapshot on shutdown.
	MetricsFile string `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
}

// HooksConfig configures lifecycle event hooks.
type HooksConfig struct {
	Enabled bool         `yaml:"enabled" json:"enabled"`
	Hooks   []HookConfig `yaml:"hooks" json:"hooks"`
}

// HookConfig defines a single hook.
type HookConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Type     string   `yaml:"type" json:"type"`     // shell, webhook, log
	Events   []string `yaml:"events" json:"events"` // event types to match
	Blocking bool     `yaml:"blocking" json:"blocking"`
	Command  string   `yaml:"command,omitempty" json:"command,omitempty"` // for shell hooks
	URL      string   `yaml:"url,omitempty" json:"url,omitempty"`         // for webhook hooks
	Level    string   `yaml:"level,omitempty" json:"level,omitempty"`     // for log hooks (debug, info, warn)
}

// ParsedJobTimeout converts the job timeout string to a time.Duration.
func (c *ConsolidationConfig) ParsedJobTimeout() (time.Duration, error) {
	if c.JobTimeout == "" {
		return 2 * time.Minute, nil // default
	}
	return time.ParseDuration(c.JobTimeout)
}

// ParsedTimeout converts the extractor timeout string to a time.Duration.
func (e *ExtractorConfig) ParsedTimeout() (time.Duration, error) {
	if e.Timeout == "" {
		return 30 * time.Second, nil // default
	}
	return time.ParseDuration(e.Timeout)
}
