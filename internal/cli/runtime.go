package cli

import (
	"fmt"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/consolidate"
	"github.com/mnemo-oss/mnemo/internal/event"
	"github.com/mnemo-oss/mnemo/internal/extract"
	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/mnemo-oss/mnemo/internal/profile"
	"github.com/mnemo-oss/mnemo/internal/sessionlog"
	"github.com/mnemo-oss/mnemo/internal/telemetry"
)

// runtime bundles everything a command needs once mnemo.yaml is loaded.
// Close drains queued consolidation before releasing the stores, so a
// one-shot CLI process never loses a submitted session.
type runtime struct {
	cfg      *config.Config
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
	exporter telemetry.MetricsExporter
	memory   *memory.Memory
}

func openRuntime() (*runtime, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}

	logger := telemetry.NewLoggerWithFormat(verbose || cfg.Logging.Level == "debug", cfg.Logging.Format)
	if cfg.Logging.File != "" {
		if err := logger.WithFile(cfg.Logging.File); err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}

	profiles, log, err := openStores(cfg)
	if err != nil {
		logger.Close()
		return nil, err
	}

	bus := buildBus(cfg, logger)

	metrics := telemetry.NewMetrics()
	var exporter telemetry.MetricsExporter
	if cfg.Logging.MetricsFile != "" {
		exporter, err = telemetry.NewJSONFileExporter(cfg.Logging.MetricsFile)
		if err != nil {
			return nil, err
		}
		metrics.SetExporter(exporter)
	}

	extractorTimeout, err := cfg.Extractor.ParsedTimeout()
	if err != nil {
		return nil, err
	}
	extractor := extract.NewRetryExtractor(
		extract.NewClient(cfg.Extractor.BaseURL, cfg.Extractor.APIKey, cfg.Extractor.Model, extractorTimeout))

	consolidator := consolidate.New(profiles, log, extractor, consolidate.Options{
		Rules: consolidate.MergeRules{
			ConfidenceThreshold: cfg.Consolidation.ConfidenceThreshold,
			Policy:              consolidate.Policy(cfg.Consolidation.Policy),
		},
		MaxRetries: cfg.Consolidation.MaxRetries,
		Logger:     logger,
		Metrics:    metrics,
		Bus:        bus,
	})

	jobTimeout, err := cfg.Consolidation.ParsedJobTimeout()
	if err != nil {
		return nil, err
	}
	scheduler := consolidate.NewScheduler(consolidator, consolidate.SchedulerOptions{
		QueueDepth:  cfg.Consolidation.QueueDepth,
		JobTimeout:  jobTimeout,
		MaxRequeues: cfg.Consolidation.MaxRequeues,
		Logger:      logger,
	})

	mem := memory.New(profiles, log, scheduler, memory.Options{
		RecentLimit: cfg.Snapshot.RecentLimit,
		Logger:      logger,
		Metrics:     metrics,
		Bus:         bus,
	})

	return &runtime{cfg: cfg, logger: logger, metrics: metrics, exporter: exporter, memory: mem}, nil
}

func openStores(cfg *config.Config) (profile.Store, sessionlog.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return profile.NewMemoryStore(), sessionlog.NewMemoryStore(), nil
	default:
		profiles, err := profile.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		log, err := sessionlog.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			profiles.Close()
			return nil, nil, err
		}
		return profiles, log, nil
	}
}

func buildBus(cfg *config.Config, logger *telemetry.Logger) *event.Bus {
	if !cfg.Hooks.Enabled || len(cfg.Hooks.Hooks) == 0 {
		return nil
	}

	bus := event.NewBus(logger)
	for _, hc := range cfg.Hooks.Hooks {
		events := make([]event.EventType, len(hc.Events))
		for i, e := range hc.Events {
			events[i] = event.EventType(e)
		}

		switch hc.Type {
		case "shell":
			bus.Register(event.NewShellHook(hc.Name, hc.Command, events, hc.Blocking))
		case "webhook":
			bus.Register(event.NewWebhookHook(hc.Name, hc.URL, events, hc.Blocking))
		case "log":
			bus.Register(event.NewLogHook(hc.Name, events, logger, hc.Level))
		}
	}
	return bus
}

func (r *runtime) Close() error {
	err := r.memory.Close()
	if r.exporter != nil {
		r.metrics.Flush("shutdown", map[string]string{"binary": "mnemo"})
		r.exporter.Close()
	}
	r.logger.Close()
	return err
}
