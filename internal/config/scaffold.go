package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultYAML is the annotated starting config written by `mnemo init`.
const defaultYAML = `name: mnemo
version: "1.0"

storage:
  driver: sqlite        # sqlite or memory
  path: .mnemo/memory.db

consolidation:
  confidence_threshold: 0.5
  max_retries: 3        # compare-and-set retries before flagging the session
  job_timeout: 2m
  queue_depth: 32
  max_requeues: 1
  policy: last-wins     # or first-wins, for contradictory facts in one session

extractor:
  base_url: https://api.perplexity.ai
  api_key: ${env.MNEMO_EXTRACTOR_API_KEY}
  model: sonar
  timeout: 30s

snapshot:
  recent_limit: 5

logging:
  level: info
  format: text
  # metrics_file: .mnemo/metrics.jsonl

hooks:
  enabled: true
  hooks:
    - name: conflict-log
      type: log
      events: [consolidation.conflict]
      level: warn
`

// Scaffold writes a starter mnemo.yaml into dir. It refuses to overwrite an
// existing file.
func Scaffold(dir string) (string, error) {
	path := filepath.Join(dir, "mnemo.yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultYAML), 0644); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
