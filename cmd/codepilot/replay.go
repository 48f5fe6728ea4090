package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var replayRunID string

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Show a session's recorded attempts and a run's tracked status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		history, err := a.sessions.History(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load session history: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(history) == 0 {
			fmt.Fprintf(out, "no recorded attempts for session %q\n", sessionID)
		}
		for i, entry := range history {
			fmt.Fprintf(out, "%d. [%s] %s (%s)\n", i+1, entry.Outcome, entry.RequestFingerprint, entry.Duration)
			if entry.ErrorCategory != "" {
				fmt.Fprintf(out, "   error: %s\n", entry.ErrorCategory)
			}
		}

		if replayRunID == "" {
			return nil
		}
		rec, err := a.pipeline.Runs.Load(ctx, replayRunID)
		if err != nil {
			return fmt.Errorf("load run %q: %w", replayRunID, err)
		}
		fmt.Fprintf(out, "\nrun %s: status=%s mode=%s started=%s updated=%s\n",
			rec.RunID, rec.Status, rec.Mode, rec.StartedAt.Format("2006-01-02T15:04:05Z07:00"), rec.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayRunID, "run", "", "also show this run's tracked status")
	rootCmd.AddCommand(replayCmd)
}
