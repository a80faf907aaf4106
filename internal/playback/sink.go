package playback

import (
	"context"
	"sync/atomic"

	"github.com/dgnsrekt/narrator/internal/audio"
)

// DiscardSink accepts frames and drops them. It is used when no audio output
// is configured.
type DiscardSink struct {
	format audio.Format
	frames atomic.Int64
}

// NewDiscardSink creates a sink accepting format. A zero format selects
// Discord's layout.
func NewDiscardSink(format audio.Format) *DiscardSink {
	if format == (audio.Format{}) {
		format = audio.DiscordFormat
	}
	return &DiscardSink{format: format}
}

func (d *DiscardSink) Format() audio.Format              { return d.format }
func (d *DiscardSink) Prepare(ctx context.Context) error { return ctx.Err() }
func (d *DiscardSink) SetSpeaking(bool) error            { return nil }

func (d *DiscardSink) WriteFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.frames.Add(1)
	return nil
}

// Frames returns the number of frames written.
func (d *DiscardSink) Frames() int64 {
	return d.frames.Load()
}
