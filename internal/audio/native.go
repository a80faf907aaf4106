package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dgnsrekt/narrator/internal/wav"
)

// ErrUnsupportedWAV is returned for WAV payloads the native decoder cannot read.
var ErrUnsupportedWAV = errors.New("unsupported WAV payload")

// NativeDecoder decodes 16-bit PCM WAV payloads without ffmpeg. It remaps
// channels and resamples linearly, which is adequate for speech.
type NativeDecoder struct{}

// Decode converts a WAV payload to PCM in format f.
func (NativeDecoder) Decode(ctx context.Context, payload []byte, f Format) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := wav.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedWAV, err)
	}
	if info.BitsPerSample != 16 || info.Channels < 1 || info.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d-bit %d channel %d Hz", ErrUnsupportedWAV,
			info.BitsPerSample, info.Channels, info.SampleRate)
	}

	src := toMono(info.Data, info.Channels)
	if info.SampleRate != f.SampleRate {
		src = resample(src, info.SampleRate, f.SampleRate)
	}

	out := make([]byte, len(src)*f.Channels*2)
	for i, s := range src {
		for ch := 0; ch < f.Channels; ch++ {
			binary.LittleEndian.PutUint16(out[(i*f.Channels+ch)*2:], uint16(s))
		}
	}
	return out, nil
}

// toMono averages interleaved channels into one.
func toMono(data []byte, channels int) []int16 {
	frames := len(data) / (2 * channels)
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += int(int16(binary.LittleEndian.Uint16(data[(i*channels+ch)*2:])))
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

func resample(src []int16, from, to int) []int16 {
	if len(src) == 0 {
		return src
	}
	n := int(int64(len(src)) * int64(to) / int64(from))
	out := make([]int16, n)
	for i := range out {
		pos := float64(i) * float64(from) / float64(to)
		j := int(pos)
		if j >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(math.Round(float64(src[j])*(1-frac) + float64(src[j+1])*frac))
	}
	return out
}
