package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads the main project configuration
func Load(dir string) (*Config, error) {
	configFile := filepath.Join(dir, "mnemo.yaml")

	content, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if no file exists
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Interpolate environment variables
	content = []byte(interpolateEnv(string(content)))

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// interpolateEnv replaces ${env.VAR} and ${VAR} with environment values
func interpolateEnv(content string) string {
	// Match ${env.VAR} pattern
	envPattern := regexp.MustCompile(`\$\{env\.([^}]+)\}`)
	content = envPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // keep original if not found
	})

	// Match ${VAR} pattern
	varPattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	content = varPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := varPattern.FindStringSubmatch(match)[1]
		if strings.Contains(varName, ".") {
			return match
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return content
}

func defaultConfig() *Config {
	cfg := &Config{
		Name:    "mnemo",
		Version: "1.0",
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		cfg.Name = "mnemo"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = ".mnemo/memory.db"
	}
	if cfg.Consolidation.ConfidenceThreshold == 0 {
		cfg.Consolidation.ConfidenceThreshold = 0.5
	}
	if cfg.Consolidation.MaxRetries == 0 {
		cfg.Consolidation.MaxRetries = 3
	}
	if cfg.Consolidation.JobTimeout == "" {
		cfg.Consolidation.JobTimeout = "2m"
	}
	if cfg.Consolidation.QueueDepth == 0 {
		cfg.Consolidation.QueueDepth = 32
	}
	if cfg.Consolidation.MaxRequeues == 0 {
		cfg.Consolidation.MaxRequeues = 1
	}
	if cfg.Consolidation.Policy == "" {
		cfg.Consolidation.Policy = "last-wins"
	}
	if cfg.Extractor.BaseURL == "" {
		cfg.Extractor.BaseURL = "https://api.perplexity.ai"
	}
	if cfg.Extractor.Model == "" {
		cfg.Extractor.Model = "sonar"
	}
	if cfg.Extractor.Timeout == "" {
		cfg.Extractor.Timeout = "30s"
	}
	if cfg.Snapshot.RecentLimit == 0 {
		cfg.Snapshot.RecentLimit = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	// Load API key from environment if not set
	if cfg.Extractor.APIKey == "" {
		cfg.Extractor.APIKey = os.Getenv("MNEMO_EXTRACTOR_API_KEY")
	}
}
