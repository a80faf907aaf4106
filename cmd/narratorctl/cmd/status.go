package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	statusEvents  int
	statusSession string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the narration state",
	Long: `Show the current narration snapshot. With --events, also list the
recorded timeline of the latest session (or --session).`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusEvents, "events", "e", 0, "number of recorded events to show")
	statusCmd.Flags().StringVar(&statusSession, "session", "", "session to list events for (default latest)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client := newClient()
	snap, err := client.Snapshot(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := printSnapshot(out, snap); err != nil {
		return err
	}
	if statusEvents <= 0 {
		return nil
	}

	resp, err := client.Events(ctx, statusSession, statusEvents)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Events (session %s):\n", resp.SessionID)
	for _, ev := range resp.Events {
		line := fmt.Sprintf("  %s  %-8s %-10s chunk %d", ev.CreatedAt.Local().Format(time.TimeOnly), ev.Type, ev.Phase, ev.ChunkIndex+1)
		if ev.ErrorKind != "" {
			line += fmt.Sprintf("  %s: %s", ev.ErrorKind, ev.ErrorMessage)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
