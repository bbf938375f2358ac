package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <user-id>",
	Short: "List sessions awaiting reconciliation",
	Long: `List session records flagged during consolidation, oldest first.

A session gets flagged when its merge lost the compare-and-set race
more times than the configured retry budget allows. The record keeps
every extracted fact, so nothing is lost; an operator resolves the
flagged facts by applying them as explicit edits:

  mnemo reconcile alice
  mnemo edit alice --skill go=validated`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	flagged, err := rt.memory.FlaggedSessions(args[0])
	if err != nil {
		return err
	}

	if len(flagged) == 0 {
		fmt.Println("No sessions awaiting reconciliation.")
		return nil
	}

	fmt.Printf("%d session(s) awaiting reconciliation:\n\n", len(flagged))
	for _, record := range flagged {
		fmt.Printf("Session %s (ended %s)\n", record.SessionID, record.EndedAt.Local().Format(time.DateTime))
		if record.Summary != "" {
			fmt.Printf("  Summary: %s\n", record.Summary)
		}
		for _, fo := range record.Facts {
			fmt.Printf("  - %s (confidence %.2f)\n", fo.Fact.Subject, fo.Fact.Confidence)
		}
		fmt.Println()
	}
	fmt.Println("Apply the facts you trust with 'mnemo edit'.")
	return nil
}
