// Package cmd implements the narratorctl commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/narrator/internal/narration"
	"github.com/dgnsrekt/narrator/internal/remote"
)

var (
	apiURL     string
	token      string
	timeout    time.Duration
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "narratorctl",
	Short: "Control a narrator daemon",
	Long: `narratorctl drives a running narrator daemon over its HTTP API.

Commands:
  start   - narrate a stored document or inline text
  toggle  - pause or resume
  stop    - end the session
  next    - skip to the next chunk
  prev    - go back one chunk
  status  - show the current snapshot and recent events
  relay   - forward ntfy messages as commands`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", envOr("NARRATOR_URL", "http://localhost:8080"), "narrator API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("NARRATOR_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", remote.DefaultTimeout, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON")
}

func newClient() *remote.Client {
	return remote.NewClient(apiURL, token, timeout)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printSnapshot(w io.Writer, snap narration.Snapshot) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(w, "Phase:    %s\n", snap.Phase)
	if snap.SessionID == "" && snap.TotalChunks == 0 {
		return nil
	}
	if snap.Title != "" {
		fmt.Fprintf(w, "Title:    %s\n", snap.Title)
	}
	if snap.DocumentID != "" {
		fmt.Fprintf(w, "Document: %s\n", snap.DocumentID)
	}
	if snap.TotalChunks > 0 {
		fmt.Fprintf(w, "Chunk:    %d/%d\n", snap.CurrentIndex+1, snap.TotalChunks)
	}
	fmt.Fprintf(w, "Progress: %.1f%% (chunk %.1f%%)\n", snap.OverallProgress*100, snap.ChunkProgress*100)
	if snap.DurationMillis > 0 {
		fmt.Fprintf(w, "Position: %s / %s\n",
			time.Duration(snap.PositionMillis)*time.Millisecond,
			time.Duration(snap.DurationMillis)*time.Millisecond)
	}
	if snap.LastError != nil {
		fmt.Fprintf(w, "Error:    %s on chunk %d: %s\n", snap.LastError.Kind, snap.LastError.ChunkIndex+1, snap.LastError.Message)
	}
	return nil
}
