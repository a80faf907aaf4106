package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/narrator/internal/api"
	"github.com/dgnsrekt/narrator/internal/narration"
	"github.com/dgnsrekt/narrator/internal/remote"
)

var (
	startLanguage string
	startTitle    string
	startText     string
	startFile     string
)

var startCmd = &cobra.Command{
	Use:   "start [document-id]",
	Short: "Start narrating a document",
	Long: `Start narrating a stored document, or inline text given with --text
or --file. The daemon rejects start while a session is active; stop it first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startLanguage, "language", "l", "", "preferred language (e.g. fr, pt-BR)")
	startCmd.Flags().StringVar(&startTitle, "title", "", "title for inline text")
	startCmd.Flags().StringVar(&startText, "text", "", "inline text to narrate")
	startCmd.Flags().StringVarP(&startFile, "file", "f", "", "read inline text from a file (- for stdin)")
	rootCmd.AddCommand(startCmd)

	for _, c := range []struct {
		use, short string
		call       func(*remote.Client, context.Context) (narration.Snapshot, error)
	}{
		{"toggle", "Pause or resume narration", (*remote.Client).Toggle},
		{"stop", "Stop narration", (*remote.Client).Stop},
		{"next", "Skip to the next chunk", (*remote.Client).SkipForward},
		{"prev", "Go back one chunk", (*remote.Client).SkipBackward},
	} {
		call := c.call
		rootCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				snap, err := call(newClient(), ctx)
				if err != nil {
					return explain(err)
				}
				return printSnapshot(cmd.OutOrStdout(), snap)
			},
		})
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	req := api.StartRequest{Language: startLanguage, Title: startTitle, Text: startText}
	if len(args) == 1 {
		req.DocumentID = args[0]
	}
	if startFile != "" {
		var (
			data []byte
			err  error
		)
		if startFile == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(startFile)
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", startFile, err)
		}
		req.Text = string(data)
	}
	if req.DocumentID == "" && strings.TrimSpace(req.Text) == "" {
		return errors.New("give a document id, --text or --file")
	}
	if req.DocumentID != "" && req.Text != "" {
		return errors.New("a document id cannot be combined with --text or --file")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	snap, err := newClient().Start(ctx, req)
	if err != nil {
		return explain(err)
	}
	return printSnapshot(cmd.OutOrStdout(), snap)
}

// explain adds a hint for the daemon's conflict responses.
func explain(err error) error {
	if remote.IsConflict(err) {
		return fmt.Errorf("%w (nothing to do in the current phase)", err)
	}
	return err
}
