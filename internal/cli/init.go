package cli

import (
	"fmt"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a starter mnemo.yaml",
	Long: `Create a starter mnemo.yaml in the given directory (default: current).

The generated file documents every setting and ships with sensible
defaults: SQLite storage under .mnemo/, a 0.5 confidence threshold,
and a log hook on consolidation conflicts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	path, err := config.Scaffold(dir)
	if err != nil {
		return err
	}

	fmt.Printf("Initialized memory config at %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set MNEMO_EXTRACTOR_API_KEY for fact extraction")
	fmt.Println("  2. Submit a finished session:  mnemo submit <user-id> transcript.txt")
	fmt.Println("  3. Inspect the profile:        mnemo snapshot <user-id>")
	return nil
}
