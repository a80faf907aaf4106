//go:build !portaudio

// Package speaker plays narration through the local default audio device.
// Builds without the portaudio tag get a stub that always fails.
package speaker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgnsrekt/narrator/internal/audio"
)

// Available reports whether this build includes speaker output.
const Available = false

// ErrUnavailable is returned when the binary was built without portaudio.
var ErrUnavailable = errors.New("speaker output not available in this build (rebuild with -tags portaudio)")

// Sink is a placeholder that never opens.
type Sink struct{}

// New always fails in builds without portaudio.
func New(format audio.Format, logger *slog.Logger) (*Sink, error) {
	return nil, ErrUnavailable
}

func (s *Sink) Format() audio.Format                     { return audio.DiscordFormat }
func (s *Sink) Prepare(context.Context) error            { return ErrUnavailable }
func (s *Sink) WriteFrame(context.Context, []byte) error { return ErrUnavailable }
func (s *Sink) SetSpeaking(bool) error                   { return nil }
func (s *Sink) Close() error                             { return nil }
