//go:build portaudio

// Package speaker plays narration through the local default audio device.
package speaker

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/narrator/internal/audio"
	"github.com/gordonklaus/portaudio"
)

// Available reports whether this build includes speaker output.
const Available = true

// Sink writes PCM frames to the default output device.
type Sink struct {
	mu     sync.Mutex
	format audio.Format
	stream *portaudio.Stream
	buffer []int16
	logger *slog.Logger
}

// New creates a speaker sink. The device is opened lazily by Prepare.
func New(format audio.Format, logger *slog.Logger) (*Sink, error) {
	if format == (audio.Format{}) {
		format = audio.DiscordFormat
	}
	return &Sink{format: format, logger: logger.With("component", "speaker")}, nil
}

// Format returns the PCM layout written to the device.
func (s *Sink) Format() audio.Format {
	return s.format
}

// Prepare opens and starts the output stream once.
func (s *Sink) Prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	frameSamples := s.format.FrameBytes(20*time.Millisecond) / 2
	s.buffer = make([]int16, frameSamples)
	stream, err := portaudio.OpenDefaultStream(0, s.format.Channels, float64(s.format.SampleRate),
		frameSamples/s.format.Channels, &s.buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	s.stream = stream
	s.logger.Info("speaker output opened", "sample_rate", s.format.SampleRate, "channels", s.format.Channels)
	return nil
}

// WriteFrame blocks until the device accepts the frame.
func (s *Sink) WriteFrame(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return fmt.Errorf("speaker output not open")
	}
	for i := range s.buffer {
		if 2*i+1 < len(frame) {
			s.buffer[i] = int16(binary.LittleEndian.Uint16(frame[2*i:]))
		} else {
			s.buffer[i] = 0
		}
	}
	return s.stream.Write()
}

// SetSpeaking is a no-op for local output.
func (s *Sink) SetSpeaking(bool) error {
	return nil
}

// Close stops the stream and releases PortAudio.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	portaudio.Terminate()
	return err
}
