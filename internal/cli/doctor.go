package cli

import (
	"fmt"
	goruntime "runtime"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/profile"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and configuration",
	Long:  "Validate that configuration, storage, and the extractor credentials are properly set up.",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("mnemo doctor — checking your environment")
	fmt.Println()
	allOK := true

	// 1. Go version
	fmt.Printf("  Go version: %s", goruntime.Version())
	fmt.Println(" ✓")

	// 2. OS/Arch
	fmt.Printf("  Platform:   %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Println(" ✓")

	// 3. Configuration
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Println("  Config:     INVALID ✗")
		fmt.Printf("    → %v\n", err)
		allOK = false
	}
	if cfg != nil {
		fmt.Printf("  Config:     %s v%s", cfg.Name, cfg.Version)
		fmt.Println(" ✓")
	}

	// 4. Extractor API key
	if cfg != nil && cfg.Extractor.APIKey != "" {
		key := cfg.Extractor.APIKey
		fmt.Printf("  API key:    set (***%s)", key[max(0, len(key)-4):])
		fmt.Println(" ✓")
	} else {
		fmt.Println("  API key:    NOT SET ✗")
		fmt.Println("    → Set MNEMO_EXTRACTOR_API_KEY or extractor.api_key in mnemo.yaml")
		allOK = false
	}

	// 5. Storage
	if cfg != nil {
		if cfg.Storage.Driver == "memory" {
			fmt.Println("  Storage:    memory (non-durable) ✓")
		} else {
			store, err := profile.NewSQLiteStore(cfg.Storage.Path)
			if err != nil {
				fmt.Printf("  Storage:    FAILED (%s) ✗\n", err)
				allOK = false
			} else {
				store.Close()
				fmt.Printf("  Storage:    %s (%s)", cfg.Storage.Driver, cfg.Storage.Path)
				fmt.Println(" ✓")
			}
		}
	}

	// 6. Hooks
	if cfg != nil {
		if cfg.Hooks.Enabled {
			fmt.Printf("  Hooks:      %d configured ✓\n", len(cfg.Hooks.Hooks))
		} else {
			fmt.Println("  Hooks:      disabled ✓")
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See above for details.")
	}

	return nil
}
