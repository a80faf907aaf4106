// Package tts turns chunk text into playable audio.
package tts

import "context"

// VoiceConfig selects the voice an engine synthesizes with.
type VoiceConfig struct {
	// LanguageCode is a BCP-47 tag such as "en-US".
	LanguageCode string
	// Name is an engine-specific voice or speaker identifier.
	Name string
}

// SynthesizeRequest contains parameters for TTS synthesis.
type SynthesizeRequest struct {
	Text  string
	Voice VoiceConfig
}

// AudioResult represents synthesized audio output.
type AudioResult struct {
	// Data contains the audio bytes (WAV format).
	Data []byte
	// Format describes the audio format (e.g., "wav").
	Format string
	// SampleRate is the audio sample rate in Hz.
	SampleRate int
	// Channels is the number of audio channels.
	Channels int
}

// Engine is the interface for text-to-speech synthesis.
//
// Implementations perform a single attempt per call. Failures are returned as
// *SynthesisError so callers can report a kind without inspecting transports.
type Engine interface {
	// Synthesize converts text to audio. Cancelling ctx aborts the call.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error)
	// Name returns the engine identifier.
	Name() string
}
