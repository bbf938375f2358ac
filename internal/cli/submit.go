package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/sessionlog"
	"github.com/spf13/cobra"
)

var (
	submitSession string
	submitStarted string
	submitAsync   bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <user-id> [transcript-file]",
	Short: "Submit a finished session for consolidation",
	Long: `Submit a completed session transcript. Facts are extracted and merged
into the user's profile on the background path; the session is recorded
in the append-only log either way.

The transcript is read from the file argument, or from stdin when no
file is given.

Examples:
  mnemo submit alice transcript.txt
  cat transcript.txt | mnemo submit alice
  mnemo submit alice transcript.txt --session s-2026-08-31`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitSession, "session", "s", "", "session id (generated if empty)")
	submitCmd.Flags().StringVar(&submitStarted, "started", "", "session start time, RFC 3339 (default: now)")
	submitCmd.Flags().BoolVar(&submitAsync, "async", false, "enqueue and exit without waiting for the result")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	userID := args[0]

	transcript, err := readTranscript(args)
	if err != nil {
		return err
	}
	if len(transcript) == 0 {
		return memErrors.New(memErrors.CodeConfigInvalid, "transcript is empty")
	}

	startedAt := time.Now()
	if submitStarted != "" {
		startedAt, err = time.Parse(time.RFC3339, submitStarted)
		if err != nil {
			return fmt.Errorf("invalid --started value: %w", err)
		}
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID, err := rt.memory.SubmitForConsolidation(userID, submitSession, transcript, startedAt, time.Time{})
	if err != nil {
		return err
	}
	fmt.Printf("Session %s queued for consolidation\n", sessionID)

	if submitAsync {
		return nil
	}

	record, err := waitForRecord(rt, userID, sessionID)
	if err != nil {
		return err
	}
	printRecord(record)
	return nil
}

func readTranscript(args []string) (string, error) {
	if len(args) > 1 {
		content, err := os.ReadFile(args[1])
		if err != nil {
			return "", fmt.Errorf("failed to read transcript: %w", err)
		}
		return string(content), nil
	}
	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript from stdin: %w", err)
	}
	return string(content), nil
}

// waitForRecord polls the session log until the background path has logged
// the session. The deadline tracks the configured job timeout, with headroom
// for one re-enqueue.
func waitForRecord(rt *runtime, userID, sessionID string) (*sessionlog.SessionRecord, error) {
	jobTimeout, err := rt.cfg.Consolidation.ParsedJobTimeout()
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(jobTimeout * time.Duration(rt.cfg.Consolidation.MaxRequeues+1))

	for time.Now().Before(deadline) {
		record, err := rt.memory.GetSession(userID, sessionID)
		if err == nil {
			return record, nil
		}
		if !memErrors.HasCode(err, memErrors.CodeNotFound) {
			return nil, err
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil, memErrors.New(memErrors.CodeTimeout,
		fmt.Sprintf("session %s was not consolidated within %s", sessionID, jobTimeout)).
		WithSuggestion("check the log; the session may still land, or rerun with --async")
}

func printRecord(record *sessionlog.SessionRecord) {
	applied := len(record.AppliedFacts())
	fmt.Printf("\nSession %s consolidated\n", record.SessionID)
	if record.Summary != "" {
		fmt.Printf("  Summary:  %s\n", record.Summary)
	}
	fmt.Printf("  Facts:    %d extracted, %d applied\n", len(record.Facts), applied)
	for _, fo := range record.Facts {
		status := "applied"
		if !fo.Applied {
			status = "rejected: " + fo.Reason
		}
		fmt.Printf("    - %s (%s)\n", fo.Fact.Subject, status)
	}
	if record.ProfileVersionAfter > 0 {
		fmt.Printf("  Profile:  version %d\n", record.ProfileVersionAfter)
	} else {
		fmt.Println("  Profile:  unchanged")
	}
	if record.ExtractionError != "" {
		fmt.Printf("  Warning:  extraction failed: %s\n", record.ExtractionError)
	}
	if record.NeedsReconciliation {
		fmt.Println("  Warning:  flagged for reconciliation (run 'mnemo reconcile')")
	}
}
