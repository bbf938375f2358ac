package config

import (
	"fmt"
	"strings"
	"time"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// Validate checks the configuration for values the runtime cannot work with.
func Validate(cfg *Config) error {
	var errors []string

	validDrivers := map[string]bool{
		"sqlite": true,
		"memory": true,
	}
	if !validDrivers[cfg.Storage.Driver] {
		errors = append(errors, fmt.Sprintf("invalid storage driver: %s (must be sqlite or memory)", cfg.Storage.Driver))
	}
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.Path == "" {
		errors = append(errors, "sqlite storage requires a path")
	}

	if cfg.Consolidation.ConfidenceThreshold < 0 || cfg.Consolidation.ConfidenceThreshold > 1 {
		errors = append(errors, fmt.Sprintf("confidence_threshold must be in [0,1], got %v", cfg.Consolidation.ConfidenceThreshold))
	}
	if cfg.Consolidation.MaxRetries < 0 {
		errors = append(errors, "max_retries must be non-negative")
	}
	if cfg.Consolidation.QueueDepth < 0 {
		errors = append(errors, "queue_depth must be non-negative")
	}
	if cfg.Consolidation.MaxRequeues < 0 {
		errors = append(errors, "max_requeues must be non-negative")
	}

	validPolicies := map[string]bool{
		"last-wins":  true,
		"first-wins": true,
	}
	if !validPolicies[cfg.Consolidation.Policy] {
		errors = append(errors, fmt.Sprintf("invalid policy: %s (must be last-wins or first-wins)", cfg.Consolidation.Policy))
	}

	if cfg.Consolidation.JobTimeout != "" {
		if _, err := time.ParseDuration(cfg.Consolidation.JobTimeout); err != nil {
			errors = append(errors, fmt.Sprintf("invalid job_timeout %q: %s", cfg.Consolidation.JobTimeout, err))
		}
	}
	if cfg.Extractor.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Extractor.Timeout); err != nil {
			errors = append(errors, fmt.Sprintf("invalid extractor timeout %q: %s", cfg.Extractor.Timeout, err))
		}
	}

	if cfg.Snapshot.RecentLimit < 0 {
		errors = append(errors, "recent_limit must be non-negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		errors = append(errors, fmt.Sprintf("invalid log level: %s", cfg.Logging.Level))
	}
	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[cfg.Logging.Format] {
		errors = append(errors, fmt.Sprintf("invalid log format: %s", cfg.Logging.Format))
	}

	for _, hook := range cfg.Hooks.Hooks {
		errors = append(errors, validateHook(hook)...)
	}

	if len(errors) > 0 {
		return memErrors.New(memErrors.CodeConfigInvalid,
			"config validation failed: "+strings.Join(errors, "; ")).
			WithSuggestion("fix mnemo.yaml and retry")
	}
	return nil
}

func validateHook(hook HookConfig) []string {
	var errors []string

	if hook.Name == "" {
		errors = append(errors, "hook name is required")
	}

	switch hook.Type {
	case "shell":
		if hook.Command == "" {
			errors = append(errors, fmt.Sprintf("shell hook %s requires a command", hook.Name))
		}
	case "webhook":
		if hook.URL == "" {
			errors = append(errors, fmt.Sprintf("webhook hook %s requires a url", hook.Name))
		}
	case "log":
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "": true}
		if !validLevels[hook.Level] {
			errors = append(errors, fmt.Sprintf("log hook %s has invalid level %s", hook.Name, hook.Level))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid hook type: %s (must be shell, webhook, or log)", hook.Type))
	}

	return errors
}
