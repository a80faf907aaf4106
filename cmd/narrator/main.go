package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/narrator/internal/api"
	"github.com/dgnsrekt/narrator/internal/audio"
	"github.com/dgnsrekt/narrator/internal/bus"
	"github.com/dgnsrekt/narrator/internal/config"
	"github.com/dgnsrekt/narrator/internal/discord"
	"github.com/dgnsrekt/narrator/internal/documents"
	"github.com/dgnsrekt/narrator/internal/eventstore"
	"github.com/dgnsrekt/narrator/internal/logging"
	"github.com/dgnsrekt/narrator/internal/narration"
	"github.com/dgnsrekt/narrator/internal/natsserver"
	"github.com/dgnsrekt/narrator/internal/playback"
	"github.com/dgnsrekt/narrator/internal/speaker"
	"github.com/dgnsrekt/narrator/internal/telemetry"
	"github.com/dgnsrekt/narrator/internal/tts"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
)

func main() {
	// Load configuration from defaults, CONFIG_FILE and environment
	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting narrator", "version", "0.1.0")

	if cfg.AuthDisabled() {
		logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"tts_engine", cfg.TTSEngine,
		"audio_sink", cfg.AudioSink,
		"audio_decoder", cfg.AudioDecoder,
		"max_chunk_chars", cfg.MaxChunkChars,
		"auto_leave_idle", cfg.AutoLeaveIdle,
		"bus_enabled", cfg.BusEnabled(),
		"metrics_enabled", cfg.MetricsEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("narrator failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  "narrator",
		Metrics:      cfg.MetricsEnabled,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
		TraceStdout:  cfg.TraceStdout,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush telemetry", "error", err)
		}
	}()

	engine, err := newEngine(cfg, tel, logger)
	if err != nil {
		return err
	}

	decoder, err := newDecoder(cfg, logger)
	if err != nil {
		return err
	}

	sink, voiceManager, closeSink, err := newSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	playbackCfg := playback.Config{Decoder: decoder, Sink: sink, Logger: logger}
	ctl := narration.NewController(narration.Options{
		Engine: engine,
		NewPlayer: func(hooks playback.Hooks) narration.Player {
			return playback.New(playbackCfg, hooks)
		},
		Voices:           voiceMap(cfg),
		DefaultLanguage:  cfg.DefaultLanguage,
		MaxChunkChars:    cfg.MaxChunkChars,
		SynthesisTimeout: cfg.SynthesisTimeout,
		IdleTimeout:      cfg.AutoLeaveIdle,
	}, logger)
	defer ctl.Shutdown()

	if voiceManager != nil {
		ctl.SetIdleCallback(func() {
			if !voiceManager.IsConnected() {
				return
			}
			logger.Info("narration idle, disconnecting from voice channel")
			if err := voiceManager.Disconnect(); err != nil {
				logger.Error("failed to disconnect from voice", "error", err)
			}
		})
	}

	observer, err := telemetry.NewNarrationObserver(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("narration metrics: %w", err)
	}
	defer ctl.Subscribe(observer.Observe)()

	deps := api.Deps{Controller: ctl, Metrics: tel.MetricsHandler()}

	var resolve bus.DocumentResolver
	if cfg.DocumentsPath != "" {
		docs, err := documents.Open(ctx, cfg.DocumentsPath, cfg.DefaultLanguage, logger)
		if err != nil {
			return fmt.Errorf("open documents: %w", err)
		}
		defer docs.Close()
		deps.Documents = docs.Resolve
		resolve = docs.Resolve
	}

	var events *eventstore.Store
	if cfg.EventStorePath != "" {
		events, err = eventstore.Open(ctx, eventstore.Config{
			Path:          cfg.EventStorePath,
			RetentionDays: cfg.EventRetentionDays,
			MaxSessions:   cfg.EventMaxSessions,
		}, logger)
		if err != nil {
			return fmt.Errorf("open event store: %w", err)
		}
		defer events.Close()

		recorder := eventstore.NewRecorder(events, 0, logger)
		recorder.Start()
		unsubscribe := ctl.Subscribe(recorder.Record)
		defer func() {
			// Shut the controller down first so its final stop is recorded.
			ctl.Shutdown()
			unsubscribe()
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := recorder.Close(flushCtx); err != nil {
				logger.Warn("event recorder flush incomplete", "error", err)
			}
		}()
		deps.Events = events
	}

	if cfg.BusEnabled() {
		closeBus, err := startBus(cfg, ctl, resolve, logger)
		if err != nil {
			return err
		}
		defer closeBus()
	}

	server := api.New(cfg, logger, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
		return nil
	})
	if events != nil {
		g.Go(func() error {
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := events.Prune(gctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Warn("event store prune failed", "error", err)
					}
				}
			}
		})
	}

	return g.Wait()
}

// newEngine builds every configured synthesis engine, instruments each one
// and returns a registry routing voices to them. TTS_ENGINE is the default.
func newEngine(cfg *config.Config, tel *telemetry.Telemetry, logger *slog.Logger) (tts.Engine, error) {
	registry := tts.NewRegistry()
	for _, name := range cfg.Engines() {
		engine, err := buildEngine(cfg, name, logger)
		if err != nil {
			if name == cfg.TTSEngine {
				return nil, fmt.Errorf("tts engine %s: %w", name, err)
			}
			logger.Warn("skipping TTS engine", "engine", name, "error", err)
			continue
		}
		instrumented, err := telemetry.NewInstrumentedEngine(engine, tel.MeterProvider(), tel.TracerProvider())
		if err != nil {
			return nil, fmt.Errorf("instrument engine %s: %w", name, err)
		}
		if err := registry.Register(instrumented); err != nil {
			return nil, err
		}
		logger.Info("TTS engine registered", "engine", name)
	}
	if err := registry.SetDefault(cfg.TTSEngine); err != nil {
		return nil, err
	}

	for lang, v := range cfg.Voices {
		if v.Engine == "" {
			continue
		}
		for _, key := range []string{lang, v.LanguageCode} {
			if key == "" {
				continue
			}
			if err := registry.Route(key, v.Engine); err != nil {
				logger.Warn("voice route ignored", "language", key, "engine", v.Engine, "error", err)
			}
		}
	}
	return registry, nil
}

func buildEngine(cfg *config.Config, name string, logger *slog.Logger) (tts.Engine, error) {
	switch name {
	case "piper":
		return tts.NewPiperEngine(tts.PiperConfig{
			BinaryPath:     cfg.PiperPath,
			ModelPath:      cfg.PiperModel,
			DefaultSpeaker: cfg.PiperSpeaker,
		}, logger)
	case "http":
		return tts.NewHTTPEngine(tts.HTTPConfig{
			Endpoint: cfg.TTSEndpoint,
			APIKey:   cfg.TTSAPIKey,
		}, logger)
	case "exec":
		return tts.NewExecEngine(cfg.TTSCommand, logger)
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}

func newDecoder(cfg *config.Config, logger *slog.Logger) (playback.Decoder, error) {
	if cfg.AudioDecoder == "native" {
		return audio.NativeDecoder{}, nil
	}
	conv, err := audio.NewConverterFromPath(cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("audio decoder: %w", err)
	}
	logger.Info("ffmpeg decoder ready", "path", cfg.FFmpegPath)
	return conv, nil
}

// newSink returns the playback sink. The voice manager is non-nil only for
// the discord sink.
func newSink(cfg *config.Config, logger *slog.Logger) (playback.Sink, *discord.VoiceManager, func(), error) {
	switch cfg.AudioSink {
	case "discord":
		vm, err := discord.NewVoiceManager(cfg.DiscordToken, cfg.GuildID, cfg.DefaultVoiceChannelID, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create voice manager: %w", err)
		}
		if err := vm.Open(); err != nil {
			return nil, nil, nil, fmt.Errorf("open Discord session: %w", err)
		}
		logger.Info("Discord session opened")
		return vm, vm, func() {
			if err := vm.Close(); err != nil {
				logger.Error("failed to close Discord session", "error", err)
			}
		}, nil
	case "speaker":
		s, err := speaker.New(audio.Format{}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open speaker: %w", err)
		}
		return s, nil, func() { s.Close() }, nil
	default:
		logger.Warn("audio sink is discard, narration will not be audible")
		return playback.NewDiscardSink(audio.DiscordFormat), nil, func() {}, nil
	}
}

func voiceMap(cfg *config.Config) *tts.VoiceMap {
	voices := make(map[string]tts.VoiceConfig, len(cfg.Voices))
	for lang, v := range cfg.Voices {
		code := v.LanguageCode
		if code == "" {
			code = lang
		}
		voices[lang] = tts.VoiceConfig{LanguageCode: code, Name: v.Name}
	}
	fallback := tts.VoiceConfig{LanguageCode: cfg.DefaultLanguage, Name: cfg.PiperSpeaker}
	return tts.NewVoiceMap(voices, fallback)
}

// startBus connects to NATS, starting an embedded server first when asked,
// and serves commands until the returned func is called.
func startBus(cfg *config.Config, ctl *narration.Controller, resolve bus.DocumentResolver, logger *slog.Logger) (func(), error) {
	url := cfg.NATSURL
	var embedded *natsserver.EmbeddedServer
	if cfg.NATSEmbedded {
		var err error
		embedded, err = natsserver.Start("127.0.0.1", cfg.NATSPort, logger)
		if err != nil {
			return nil, fmt.Errorf("embedded nats: %w", err)
		}
		url = embedded.ClientURL()
	}

	client, err := bus.Connect(url, "narrator", 0, logger)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, err
	}

	svc := bus.NewService(client, bus.ServiceConfig{Prefix: cfg.NATSSubjectPrefix}, ctl, resolve, logger)
	if err := svc.Start(); err != nil {
		client.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("start bus service: %w", err)
	}
	unsubscribe := ctl.Subscribe(svc.Publish)

	return func() {
		unsubscribe()
		svc.Close()
		client.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
	}, nil
}
