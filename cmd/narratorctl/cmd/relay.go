package cmd

import (
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/narrator/internal/logging"
	"github.com/dgnsrekt/narrator/internal/remote"
)

var (
	ntfyServer   string
	ntfyTopics   []string
	dedupeWindow time.Duration
	logLevel     string
	logFormat    string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Forward ntfy messages as narration commands",
	Long: `Subscribe to ntfy topics and forward each message as a command.

Messages: play, pause, toggle, stop, next, prev, or "start <document-id> [language]".
Reconnects with exponential backoff until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&ntfyServer, "ntfy-server", envOr("NTFY_SERVER", "https://ntfy.sh"), "ntfy server URL")
	relayCmd.Flags().StringSliceVar(&ntfyTopics, "topic", splitTopics(os.Getenv("NTFY_TOPICS")), "ntfy topic (repeatable)")
	relayCmd.Flags().DurationVar(&dedupeWindow, "dedupe-window", 10*time.Minute, "ignore redelivered message IDs within this window")
	relayCmd.Flags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	relayCmd.Flags().StringVar(&logFormat, "log-format", envOr("LOG_FORMAT", "text"), "log format (text, json)")
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	if len(ntfyTopics) == 0 {
		return errors.New("at least one --topic (or NTFY_TOPICS) is required")
	}

	logger := logging.New(logLevel, logFormat)
	if token == "" {
		logger.Warn("no bearer token set, requests may fail if the daemon requires auth")
	}
	logger.Info("starting ntfy relay",
		"ntfy_server", ntfyServer,
		"ntfy_topics", ntfyTopics,
		"api_url", apiURL,
		"dedupe_window", dedupeWindow,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bridge := remote.NewBridge(remote.BridgeConfig{
		Server:       ntfyServer,
		Topics:       ntfyTopics,
		DedupeWindow: dedupeWindow,
	}, newClient(), logger)

	if err := bridge.Run(ctx); err != nil {
		return err
	}
	logger.Info("relay stopped")
	return nil
}

func splitTopics(s string) []string {
	var topics []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
