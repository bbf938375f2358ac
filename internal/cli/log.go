package cli

import (
	"fmt"
	"time"

	"github.com/mnemo-oss/mnemo/internal/sessionlog"
	"github.com/spf13/cobra"
)

var (
	logLimit   int
	logAll     bool
	logSession string
)

var logCmd = &cobra.Command{
	Use:   "log <user-id>",
	Short: "View a user's session history",
	Long: `View the append-only session log.

Examples:
  mnemo log alice                  # most recent sessions
  mnemo log alice --limit 20       # more of them
  mnemo log alice --all            # full chronological history
  mnemo log alice --session s-42   # one session in detail`,
	Args: cobra.ExactArgs(1),
	RunE: runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "number of sessions to show (default: snapshot recent_limit)")
	logCmd.Flags().BoolVar(&logAll, "all", false, "show the full history, oldest first")
	logCmd.Flags().StringVarP(&logSession, "session", "s", "", "show a single session in detail")
}

func runLog(cmd *cobra.Command, args []string) error {
	userID := args[0]

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if logSession != "" {
		record, err := rt.memory.GetSession(userID, logSession)
		if err != nil {
			return err
		}
		printRecord(record)
		return nil
	}

	if logAll {
		cursor, err := rt.memory.History(userID)
		if err != nil {
			return err
		}
		defer cursor.Close()

		count := 0
		for cursor.Next() {
			printRecordLine(cursor.Record())
			count++
		}
		if err := cursor.Err(); err != nil {
			return err
		}
		if count == 0 {
			fmt.Println("No sessions recorded.")
		}
		return nil
	}

	limit := logLimit
	if limit <= 0 {
		limit = rt.cfg.Snapshot.RecentLimit
	}
	recent, err := rt.memory.RecentSessions(userID, limit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}
	for _, record := range recent {
		printRecordLine(&record)
	}
	return nil
}

func printRecordLine(record *sessionlog.SessionRecord) {
	applied := len(record.AppliedFacts())
	summary := record.Summary
	if summary == "" {
		summary = "(no summary)"
	}

	marker := " "
	switch {
	case record.NeedsReconciliation:
		marker = "!"
	case record.ExtractionError != "":
		marker = "x"
	}

	fmt.Printf("%s %s  %-24s  %d/%d facts  v%d  %s\n",
		marker,
		record.EndedAt.Local().Format(time.DateTime),
		record.SessionID,
		applied, len(record.Facts),
		record.ProfileVersionAfter,
		summary)
}
