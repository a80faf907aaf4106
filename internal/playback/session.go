// Package playback owns the single loaded audio resource of a narration and
// paces its PCM frames into a sink.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/narrator/internal/audio"
)

// DefaultFrameDuration is the amount of audio carried by one frame.
const DefaultFrameDuration = 20 * time.Millisecond

var (
	// ErrNotLoaded is returned by transport calls when nothing is loaded.
	ErrNotLoaded = errors.New("no audio loaded")
	// ErrSeekOutOfRange is returned by an unclamped seek past either end.
	ErrSeekOutOfRange = errors.New("seek target outside audio bounds")
	// ErrEmptyAudio is returned when a payload decodes to no samples.
	ErrEmptyAudio = errors.New("decoded audio is empty")
)

// PlaybackError wraps a failure to load or play audio.
type PlaybackError struct {
	// Op is one of "prepare", "decode" or "write".
	Op  string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s: %v", e.Op, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// Status is reported on every playback tick.
type Status struct {
	Position time.Duration
	Duration time.Duration
	Playing  bool
}

// Hooks receive playback events. They are called from the pump goroutine
// with the session locked: they must not block and must not call back into
// the Session. Nil hooks are skipped.
type Hooks struct {
	OnStatus func(Status)
	// OnComplete fires once each time playback reaches the end naturally.
	OnComplete func()
	// OnError fires when the sink fails mid-playback. Playback is paused.
	OnError func(error)
}

// Decoder turns an encoded payload into PCM in the sink's format.
type Decoder interface {
	Decode(ctx context.Context, payload []byte, f audio.Format) ([]byte, error)
}

// Sink consumes paced PCM frames.
type Sink interface {
	// Format is the PCM layout the sink accepts.
	Format() audio.Format
	// Prepare readies the output, for example by joining a voice channel.
	Prepare(ctx context.Context) error
	// WriteFrame delivers one frame. It may block for up to a frame duration.
	WriteFrame(ctx context.Context, frame []byte) error
	// SetSpeaking marks the start and end of a run of frames.
	SetSpeaking(speaking bool) error
}

// Config holds the collaborators shared by all sessions.
type Config struct {
	Decoder Decoder
	Sink    Sink
	// FrameDuration is the audio carried per frame (default 20ms).
	FrameDuration time.Duration
	// TickInterval paces the pump. Defaults to FrameDuration; tests shorten it
	// to play audio faster than real time.
	TickInterval time.Duration
	Logger       *slog.Logger
}

var live atomic.Int64

// LiveResources returns the number of loaded sessions in the process.
func LiveResources() int64 {
	return live.Load()
}

// Session wraps one loaded audio resource.
type Session struct {
	cfg    Config
	hooks  Hooks
	logger *slog.Logger

	mu       sync.Mutex
	reader   *audio.PCMFrameReader
	format   audio.Format
	playing  bool
	ended    bool
	cancel   context.CancelFunc
	pumpDone chan struct{}
}

// New creates an empty session.
func New(cfg Config, hooks Hooks) *Session {
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = DefaultFrameDuration
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = cfg.FrameDuration
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		cfg:    cfg,
		hooks:  hooks,
		logger: logger.With("component", "playback"),
	}
}

// Load releases any loaded resource, then decodes payload and loads it paused
// at zero.
func (s *Session) Load(ctx context.Context, payload []byte) error {
	s.Unload()

	if err := s.cfg.Sink.Prepare(ctx); err != nil {
		return &PlaybackError{Op: "prepare", Err: err}
	}

	format := s.cfg.Sink.Format()
	pcm, err := s.cfg.Decoder.Decode(ctx, payload, format)
	if err != nil {
		return &PlaybackError{Op: "decode", Err: err}
	}
	if len(pcm) == 0 {
		return &PlaybackError{Op: "decode", Err: ErrEmptyAudio}
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.reader = audio.NewFrameReader(pcm, format.FrameBytes(s.cfg.FrameDuration))
	s.format = format
	s.playing = false
	s.ended = false
	s.cancel = cancel
	s.pumpDone = done
	s.mu.Unlock()

	live.Add(1)
	go s.pump(pumpCtx, done)

	s.logger.Debug("audio loaded",
		"pcm_bytes", len(pcm),
		"duration", format.Duration(len(pcm)),
	)
	return nil
}

// Play starts playback, rewinding first if the audio already ended.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader == nil {
		return ErrNotLoaded
	}
	if s.ended {
		s.reader.Reset()
		s.ended = false
	}
	s.playing = true
	return nil
}

// Pause halts playback at the current position.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader == nil {
		return ErrNotLoaded
	}
	s.playing = false
	return nil
}

// Resume continues playback from the current position. It does nothing once
// the audio has ended.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader == nil {
		return ErrNotLoaded
	}
	if !s.ended {
		s.playing = true
	}
	return nil
}

// Seek moves the position by delta. With clamp the target is limited to
// [0, Duration]; without it an out of range target fails.
func (s *Session) Seek(delta time.Duration, clamp bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader == nil {
		return ErrNotLoaded
	}

	duration := s.format.Duration(s.reader.Len())
	target := s.format.Duration(s.reader.Offset()) + delta
	if target < 0 || target > duration {
		if !clamp {
			return ErrSeekOutOfRange
		}
		target = max(0, min(target, duration))
	}

	s.reader.Seek(s.format.Offset(target))
	if target < duration {
		s.ended = false
	}
	return nil
}

// Stop halts playback and rewinds to zero. The resource stays loaded and no
// completion is reported.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader == nil {
		return nil
	}
	s.playing = false
	s.ended = false
	s.reader.Reset()
	return nil
}

// Unload releases the resource and waits for the pump to exit. No hook runs
// after Unload returns. Calling it with nothing loaded is a no-op.
func (s *Session) Unload() {
	s.mu.Lock()
	if s.reader == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.pumpDone
	s.reader = nil
	s.playing = false
	s.ended = false
	s.cancel = nil
	s.pumpDone = nil
	s.mu.Unlock()

	<-done
	live.Add(-1)
	s.logger.Debug("audio unloaded")
}

// Loaded reports whether a resource is loaded.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader != nil
}

// Playing reports whether audio is currently playing.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Position returns the playback position.
func (s *Session) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return 0
	}
	return s.format.Duration(s.reader.Offset())
}

// Duration returns the length of the loaded audio.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return 0
	}
	return s.format.Duration(s.reader.Len())
}

func (s *Session) statusLocked() Status {
	return Status{
		Position: s.format.Duration(s.reader.Offset()),
		Duration: s.format.Duration(s.reader.Len()),
		Playing:  s.playing,
	}
}

// pump paces frames into the sink until ctx is cancelled by Unload.
func (s *Session) pump(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	speaking := false
	setSpeaking := func(on bool) {
		if speaking == on {
			return
		}
		speaking = on
		if err := s.cfg.Sink.SetSpeaking(on); err != nil {
			s.logger.Warn("failed to set speaking state", "speaking", on, "error", err)
		}
	}
	defer setSpeaking(false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		if !s.playing {
			s.mu.Unlock()
			setSpeaking(false)
			continue
		}

		frame, err := s.reader.ReadFrame()
		if err == io.EOF {
			s.finishLocked()
			s.mu.Unlock()
			setSpeaking(false)
			continue
		}
		s.mu.Unlock()

		setSpeaking(true)
		if err := s.cfg.Sink.WriteFrame(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.mu.Lock()
			if ctx.Err() == nil {
				s.playing = false
				if s.hooks.OnError != nil {
					s.hooks.OnError(&PlaybackError{Op: "write", Err: err})
				}
			}
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		if s.playing && s.reader.Remaining() == 0 {
			// The last frame is out: complete on this tick.
			s.finishLocked()
			s.mu.Unlock()
			setSpeaking(false)
			continue
		}
		s.emitStatus(s.statusLocked())
		s.mu.Unlock()
	}
}

// finishLocked marks natural end of the audio and fires OnComplete once.
func (s *Session) finishLocked() {
	s.playing = false
	s.ended = true
	s.emitStatus(s.statusLocked())
	if s.hooks.OnComplete != nil {
		s.hooks.OnComplete()
	}
}

func (s *Session) emitStatus(st Status) {
	if s.hooks.OnStatus != nil {
		s.hooks.OnStatus(st)
	}
}
