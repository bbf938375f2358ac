package cli

import (
	"encoding/json"
	"fmt"

	"github.com/mnemo-oss/mnemo/internal/composer"
	"github.com/spf13/cobra"
)

var snapshotJSON bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <user-id>",
	Short: "Show a user's memory snapshot",
	Long: `Show the context a new session would start from: the current profile
plus the most recent session records, rendered as the memory block
that gets prepended to the system prompt.

Examples:
  mnemo snapshot alice          # rendered memory block
  mnemo snapshot alice --json   # raw profile and recent sessions`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the raw snapshot as JSON")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	snap, err := rt.memory.Snapshot(args[0])
	if err != nil {
		return err
	}

	if snapshotJSON {
		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(composer.Compose(snap))
	if snap.Profile.Version == 0 {
		fmt.Println("\n(no consolidated profile yet, version 0)")
	} else {
		fmt.Printf("\n(profile version %d)\n", snap.Profile.Version)
	}
	return nil
}
