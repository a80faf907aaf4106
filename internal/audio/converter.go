// Package audio converts synthesized audio into paced PCM frames for a sink.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

const (
	// DiscordSampleRate is the required sample rate for Discord voice.
	DiscordSampleRate = 48000
	// DiscordChannels is the required number of channels for Discord voice.
	DiscordChannels = 2
	// DiscordFrameSize is the number of samples per frame (20ms at 48kHz).
	DiscordFrameSize = 960
	// DiscordFrameBytes is the size of one frame in bytes (stereo 16-bit).
	DiscordFrameBytes = DiscordFrameSize * DiscordChannels * 2
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not installed.
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	// ErrConversionFailed is returned when ffmpeg conversion fails.
	ErrConversionFailed = errors.New("audio conversion failed")
	// ErrEmptyInput is returned when there is nothing to convert.
	ErrEmptyInput = errors.New("empty input data")
)

// Converter decodes WAV payloads to raw PCM with ffmpeg.
type Converter struct {
	ffmpegPath string
}

// NewConverter creates a converter using ffmpeg from PATH.
func NewConverter() (*Converter, error) {
	return NewConverterFromPath("ffmpeg")
}

// NewConverterFromPath looks up name (a command or a path) and fails if it
// cannot be executed.
func NewConverterFromPath(name string) (*Converter, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, ErrFFmpegNotFound
	}
	return &Converter{ffmpegPath: path}, nil
}

// NewConverterWithPath creates a converter with a specific ffmpeg path.
func NewConverterWithPath(path string) *Converter {
	return &Converter{ffmpegPath: path}
}

// Decode converts a WAV payload to signed 16-bit little-endian PCM in format f.
func (c *Converter) Decode(ctx context.Context, wavData []byte, f Format) ([]byte, error) {
	if len(wavData) == 0 {
		return nil, ErrEmptyInput
	}

	args := []string{
		"-f", "wav",
		"-i", "pipe:0",
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		"-f", "s16le",
		"-loglevel", "error",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(wavData)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrConversionFailed, stderr.String())
	}

	return stdout.Bytes(), nil
}
