package audio

import "time"

// Format describes interleaved signed 16-bit PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// DiscordFormat is what Discord voice expects.
var DiscordFormat = Format{SampleRate: DiscordSampleRate, Channels: DiscordChannels}

// BytesPerSecond returns the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// FrameBytes returns the size of one frame of duration d, aligned to whole
// samples across all channels.
func (f Format) FrameBytes(d time.Duration) int {
	samples := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	if samples < 1 {
		samples = 1
	}
	return samples * f.Channels * 2
}

// Duration returns the playing time of n bytes.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// Offset returns the byte offset of d, aligned to a sample boundary.
func (f Format) Offset(d time.Duration) int {
	block := f.Channels * 2
	if block <= 0 {
		return 0
	}
	n := int(int64(f.BytesPerSecond()) * int64(d) / int64(time.Second))
	return n - n%block
}
