package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/narrator/internal/api"
	"github.com/dgnsrekt/narrator/internal/narration"
)

// ErrUnknownCommand is returned by ParseCommand for text it cannot map.
var ErrUnknownCommand = errors.New("unknown command")

// Action is a transport action requested over ntfy.
type Action string

const (
	ActionPlay   Action = "play"
	ActionPause  Action = "pause"
	ActionToggle Action = "toggle"
	ActionStop   Action = "stop"
	ActionNext   Action = "next"
	ActionPrev   Action = "prev"
	ActionStart  Action = "start"
)

// Command is a parsed ntfy message.
type Command struct {
	Action     Action
	DocumentID string
	Language   string
}

var aliases = map[string]Action{
	"play":     ActionPlay,
	"resume":   ActionPlay,
	"pause":    ActionPause,
	"toggle":   ActionToggle,
	"stop":     ActionStop,
	"next":     ActionNext,
	"skip":     ActionNext,
	"forward":  ActionNext,
	"prev":     ActionPrev,
	"previous": ActionPrev,
	"back":     ActionPrev,
	"start":    ActionStart,
}

// ParseCommand maps message text such as "next" or "start guide fr" to a
// Command. Matching is case-insensitive.
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, ErrUnknownCommand
	}
	action, ok := aliases[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
	cmd := Command{Action: action}
	if action != ActionStart {
		if len(fields) > 1 {
			return Command{}, fmt.Errorf("%s takes no arguments", action)
		}
		return cmd, nil
	}
	switch len(fields) {
	case 3:
		cmd.Language = fields[2]
		fallthrough
	case 2:
		cmd.DocumentID = fields[1]
	default:
		return Command{}, errors.New("usage: start <document-id> [language]")
	}
	return cmd, nil
}

// Commander is the subset of Client the bridge drives.
type Commander interface {
	Start(ctx context.Context, req api.StartRequest) (narration.Snapshot, error)
	Toggle(ctx context.Context) (narration.Snapshot, error)
	Stop(ctx context.Context) (narration.Snapshot, error)
	SkipForward(ctx context.Context) (narration.Snapshot, error)
	SkipBackward(ctx context.Context) (narration.Snapshot, error)
	Snapshot(ctx context.Context) (narration.Snapshot, error)
}

// NtfyMessage represents a message received from the ntfy JSON stream.
type NtfyMessage struct {
	ID      string `json:"id"`
	Time    int64  `json:"time"`
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// BridgeConfig configures the ntfy subscription.
type BridgeConfig struct {
	Server string
	Topics []string
	// DedupeWindow drops redelivered message IDs seen within the window.
	DedupeWindow time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
}

// Bridge subscribes to ntfy topics and turns messages into narration
// commands.
type Bridge struct {
	cfg        BridgeConfig
	commander  Commander
	logger     *slog.Logger
	httpClient *http.Client
	now        func() time.Time

	seenMu sync.Mutex
	seen   map[string]time.Time
}

// NewBridge creates a bridge.
func NewBridge(cfg BridgeConfig, commander Commander, logger *slog.Logger) *Bridge {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	return &Bridge{
		cfg:        cfg,
		commander:  commander,
		logger:     logger.With("component", "ntfy-bridge"),
		httpClient: &http.Client{},
		now:        time.Now,
		seen:       make(map[string]time.Time),
	}
}

// Run subscribes to every topic and blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if len(b.cfg.Topics) == 0 {
		return errors.New("at least one ntfy topic is required")
	}

	var wg sync.WaitGroup
	for _, topic := range b.cfg.Topics {
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			b.subscribeLoop(ctx, t)
		}(topic)
	}

	if b.cfg.DedupeWindow > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.cleanupLoop(ctx)
		}()
	}

	wg.Wait()
	return nil
}

// subscribeLoop subscribes to a single topic and reconnects on errors.
func (b *Bridge) subscribeLoop(ctx context.Context, topic string) {
	backoff := b.cfg.MinBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		b.logger.Info("subscribing to ntfy topic", "topic", topic, "server", b.cfg.Server)

		connected, err := b.subscribe(ctx, topic)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("subscription error, reconnecting", "topic", topic, "error", err, "backoff", backoff)
		}
		if connected {
			backoff = b.cfg.MinBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > b.cfg.MaxBackoff {
			backoff = b.cfg.MaxBackoff
		}
	}
}

// subscribe reads the ntfy JSON stream for a topic until it ends. connected
// reports whether the stream was opened.
func (b *Bridge) subscribe(ctx context.Context, topic string) (connected bool, err error) {
	url := fmt.Sprintf("%s/%s/json", strings.TrimSuffix(b.cfg.Server, "/"), topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	b.logger.Info("connected to ntfy stream", "topic", topic)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg NtfyMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			b.logger.Warn("failed to parse ntfy message", "error", err, "line", string(line))
			continue
		}

		// keepalive, open and poll_request events carry no command
		if msg.Event != "message" {
			continue
		}

		b.HandleMessage(ctx, msg)
	}

	if err := scanner.Err(); err != nil {
		return true, fmt.Errorf("scanner error: %w", err)
	}
	return true, nil
}

// HandleMessage executes the command carried by msg.
func (b *Bridge) HandleMessage(ctx context.Context, msg NtfyMessage) {
	if b.cfg.DedupeWindow > 0 && msg.ID != "" && b.duplicate(msg.ID) {
		b.logger.Debug("skipping duplicate message", "id", msg.ID)
		return
	}

	cmd, err := ParseCommand(msg.Message)
	if err != nil {
		b.logger.Warn("ignoring ntfy message", "id", msg.ID, "topic", msg.Topic, "error", err)
		return
	}

	snap, err := b.execute(ctx, cmd)
	if err != nil {
		if IsConflict(err) {
			b.logger.Info("command not applicable", "action", cmd.Action, "error", err)
			return
		}
		b.logger.Error("failed to forward command", "action", cmd.Action, "id", msg.ID, "error", err)
		return
	}

	b.logger.Info("forwarded command",
		"action", cmd.Action,
		"ntfy_id", msg.ID,
		"phase", snap.Phase.String(),
		"chunk", snap.CurrentIndex,
	)
}

func (b *Bridge) execute(ctx context.Context, cmd Command) (narration.Snapshot, error) {
	switch cmd.Action {
	case ActionStart:
		return b.commander.Start(ctx, api.StartRequest{DocumentID: cmd.DocumentID, Language: cmd.Language})
	case ActionToggle:
		return b.commander.Toggle(ctx)
	case ActionStop:
		return b.commander.Stop(ctx)
	case ActionNext:
		return b.commander.SkipForward(ctx)
	case ActionPrev:
		return b.commander.SkipBackward(ctx)
	case ActionPlay, ActionPause:
		// Toggle only when it moves toward the requested state.
		snap, err := b.commander.Snapshot(ctx)
		if err != nil {
			return snap, err
		}
		busy := snap.Phase == narration.PhasePlaying || snap.Phase == narration.PhaseGenerating
		if (cmd.Action == ActionPlay && busy) ||
			(cmd.Action == ActionPause && snap.Phase != narration.PhasePlaying) {
			return snap, nil
		}
		return b.commander.Toggle(ctx)
	}
	return narration.Snapshot{}, ErrUnknownCommand
}

func (b *Bridge) duplicate(id string) bool {
	b.seenMu.Lock()
	defer b.seenMu.Unlock()

	now := b.now()
	if seenAt, ok := b.seen[id]; ok && now.Sub(seenAt) < b.cfg.DedupeWindow {
		return true
	}
	b.seen[id] = now
	return false
}

func (b *Bridge) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.DedupeWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.cleanup()
		}
	}
}

// cleanup removes message IDs older than the dedupe window.
func (b *Bridge) cleanup() {
	b.seenMu.Lock()
	defer b.seenMu.Unlock()

	now := b.now()
	for id, seenAt := range b.seen {
		if now.Sub(seenAt) >= b.cfg.DedupeWindow {
			delete(b.seen, id)
		}
	}
}
