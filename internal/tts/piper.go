package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/dgnsrekt/narrator/internal/wav"
)

var (
	// ErrPiperNotFound is returned when the piper binary is not found.
	ErrPiperNotFound = errors.New("piper binary not found")
	// ErrNoModelSpecified is returned when no model is configured.
	ErrNoModelSpecified = errors.New("no piper model specified")
)

// PiperConfig holds configuration for the Piper TTS engine.
type PiperConfig struct {
	// BinaryPath is the path to the piper executable.
	BinaryPath string
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// DefaultSpeaker is used when the request voice names no speaker.
	DefaultSpeaker string
}

// PiperEngine implements the Engine interface using local Piper TTS.
type PiperEngine struct {
	config PiperConfig
	logger *slog.Logger
}

// NewPiperEngine creates a new Piper TTS engine.
func NewPiperEngine(cfg PiperConfig, logger *slog.Logger) (*PiperEngine, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "piper"
	}

	if _, err := exec.LookPath(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPiperNotFound, cfg.BinaryPath)
	}

	if cfg.ModelPath == "" {
		return nil, ErrNoModelSpecified
	}

	return &PiperEngine{
		config: cfg,
		logger: logger.With("component", "piper"),
	}, nil
}

// Name returns the engine identifier.
func (p *PiperEngine) Name() string {
	return "piper"
}

// Synthesize converts text to audio using Piper. Piper models are single
// language, so only the voice name is used, as the speaker id.
func (p *PiperEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	args := []string{
		"--model", p.config.ModelPath,
		"--output-raw",
	}

	speaker := p.speaker(req.Voice)
	if speaker != "" {
		args = append(args, "--speaker", speaker)
	}

	p.logger.Debug("running piper",
		"binary", p.config.BinaryPath,
		"model", p.config.ModelPath,
		"speaker", speaker,
		"text_length", len(req.Text),
	)

	cmd := exec.CommandContext(ctx, p.config.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader([]byte(req.Text))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, wrapError(p.Name(), ctx.Err())
		}
		p.logger.Error("piper failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, &SynthesisError{
			Kind:   KindServer,
			Engine: p.Name(),
			Err:    fmt.Errorf("%w: %v", ErrSynthesisFailed, err),
		}
	}

	rawAudio := stdout.Bytes()
	if len(rawAudio) == 0 {
		return nil, &SynthesisError{Kind: KindEmpty, Engine: p.Name(), Err: ErrEmptyAudio}
	}

	p.logger.Debug("piper synthesis complete", "output_bytes", len(rawAudio))

	return &AudioResult{
		Data:       wav.WrapRawPCM(rawAudio, wav.PiperSampleRate, wav.PiperChannels, wav.PiperBitsPerSample),
		Format:     "wav",
		SampleRate: wav.PiperSampleRate,
		Channels:   wav.PiperChannels,
	}, nil
}

func (p *PiperEngine) speaker(v VoiceConfig) string {
	name := v.Name
	if name == "" || name == "default" {
		name = p.config.DefaultSpeaker
	}
	if name == "default" {
		return ""
	}
	return name
}
