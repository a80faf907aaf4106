package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/narrator/internal/narration"
	"github.com/dgnsrekt/narrator/internal/protocol"
	"github.com/nats-io/nats.go"
)

// ErrUnknownCommand is returned for unrecognised command names.
var ErrUnknownCommand = errors.New("unknown command")

// DefaultProgressInterval limits progress publishes.
const DefaultProgressInterval = 500 * time.Millisecond

// Controller is the part of the narration controller driven by the bus.
type Controller interface {
	Start(ctx context.Context, doc narration.Document) error
	TogglePlayPause() error
	Stop() error
	SkipForward() error
	SkipBackward() error
	Snapshot() narration.Snapshot
}

// DocumentResolver loads a stored document for the given language.
type DocumentResolver func(ctx context.Context, id, language string) (narration.Document, error)

// Service publishes controller events and executes commands from the bus.
type Service struct {
	client           *Client
	prefix           string
	ctl              Controller
	resolve          DocumentResolver
	progressInterval time.Duration
	commandTimeout   time.Duration
	logger           *slog.Logger
	clock            func() time.Time

	mu           sync.Mutex
	lastProgress time.Time
	sub          *nats.Subscription
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Prefix           string
	ProgressInterval time.Duration
	CommandTimeout   time.Duration
}

// NewService creates a service. resolve may be nil when no document store
// is configured; start commands then need text.
func NewService(client *Client, cfg ServiceConfig, ctl Controller, resolve DocumentResolver, logger *slog.Logger) *Service {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	return &Service{
		client:           client,
		prefix:           cfg.Prefix,
		ctl:              ctl,
		resolve:          resolve,
		progressInterval: cfg.ProgressInterval,
		commandTimeout:   cfg.CommandTimeout,
		logger:           logger.With("component", "bus-service"),
		clock:            time.Now,
	}
}

// Start subscribes to the command subject.
func (s *Service) Start() error {
	subject := protocol.CommandSubject(s.prefix)
	sub, err := s.client.Conn().Subscribe(subject, s.handleCommand)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	s.logger.Info("listening for commands", "subject", subject)
	return nil
}

// Close stops receiving commands.
func (s *Service) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		_ = sub.Drain()
	}
}

// Publish is a narration.Listener. Progress events are throttled to one per
// interval; everything else is published immediately.
func (s *Service) Publish(ev narration.Event) {
	now := s.clock()
	if ev.Type == narration.EventProgress {
		s.mu.Lock()
		if now.Sub(s.lastProgress) < s.progressInterval {
			s.mu.Unlock()
			return
		}
		s.lastProgress = now
		s.mu.Unlock()
	}

	data, err := json.Marshal(protocol.StatusMessage{Event: ev.Type, Snapshot: ev.Snapshot, Timestamp: now.UTC()})
	if err != nil {
		s.logger.Warn("failed to marshal status", "error", err)
		return
	}
	if err := s.client.Conn().Publish(protocol.StatusSubject(s.prefix), data); err != nil {
		s.logger.Warn("failed to publish status", "error", err)
	}
}

func (s *Service) handleCommand(msg *nats.Msg) {
	var cmd protocol.CommandMessage
	var reply protocol.CommandReply

	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		s.logger.Warn("failed to decode command", "error", err)
		reply.Error = "invalid command payload"
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), s.commandTimeout)
		sn, err := s.Dispatch(ctx, cmd)
		cancel()
		if err != nil {
			s.logger.Info("command rejected", "command", cmd.Command, "error", err)
			reply.Error = err.Error()
		} else {
			reply.OK = true
			reply.Snapshot = &sn
		}
	}

	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to marshal reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send reply", "error", err)
	}
}

// Dispatch executes cmd and returns the snapshot after it.
func (s *Service) Dispatch(ctx context.Context, cmd protocol.CommandMessage) (narration.Snapshot, error) {
	var err error
	switch cmd.Command {
	case protocol.CommandStart:
		var doc narration.Document
		doc, err = s.document(ctx, cmd)
		if err == nil {
			err = s.ctl.Start(ctx, doc)
		}
	case protocol.CommandToggle:
		err = s.ctl.TogglePlayPause()
	case protocol.CommandStop:
		err = s.ctl.Stop()
	case protocol.CommandSkipForward:
		err = s.ctl.SkipForward()
	case protocol.CommandSkipBackward:
		err = s.ctl.SkipBackward()
	case protocol.CommandStatus:
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
	if err != nil {
		return narration.Snapshot{}, err
	}
	return s.ctl.Snapshot(), nil
}

func (s *Service) document(ctx context.Context, cmd protocol.CommandMessage) (narration.Document, error) {
	if cmd.DocumentID == "" {
		return narration.Document{Title: cmd.Title, Text: cmd.Text, Language: cmd.Language}, nil
	}
	if s.resolve == nil {
		return narration.Document{}, errors.New("document store not configured")
	}
	return s.resolve(ctx, cmd.DocumentID, cmd.Language)
}
