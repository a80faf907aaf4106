package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/narrator/internal/wav"
)

// ErrNoEndpoint is returned when the HTTP engine has no endpoint configured.
var ErrNoEndpoint = errors.New("no TTS endpoint specified")

// HTTPConfig holds configuration for a remote synthesis backend.
type HTTPConfig struct {
	// Endpoint is the full synthesis URL.
	Endpoint string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// Client overrides the HTTP client. Timeouts come from the request context.
	Client *http.Client
}

// HTTPEngine synthesizes speech through a JSON-over-HTTP backend that speaks
// the common text:synthesize request shape and answers with base64 LINEAR16.
type HTTPEngine struct {
	config HTTPConfig
	client *http.Client
	logger *slog.Logger
}

type httpSynthesizeRequest struct {
	Input       httpInput       `json:"input"`
	Voice       httpVoice       `json:"voice"`
	AudioConfig httpAudioConfig `json:"audioConfig"`
}

type httpInput struct {
	Text string `json:"text"`
}

type httpVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
}

type httpAudioConfig struct {
	AudioEncoding string `json:"audioEncoding"`
}

type httpSynthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// NewHTTPEngine creates a remote synthesis engine.
func NewHTTPEngine(cfg HTTPConfig, logger *slog.Logger) (*HTTPEngine, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport}
	}
	return &HTTPEngine{
		config: cfg,
		client: client,
		logger: logger.With("component", "tts-http"),
	}, nil
}

// Name returns the engine identifier.
func (h *HTTPEngine) Name() string {
	return "http"
}

// Synthesize posts the text to the backend and returns WAV audio.
func (h *HTTPEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(httpSynthesizeRequest{
		Input:       httpInput{Text: req.Text},
		Voice:       httpVoice{LanguageCode: req.Voice.LanguageCode, Name: req.Voice.Name},
		AudioConfig: httpAudioConfig{AudioEncoding: "LINEAR16"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.config.APIKey)
	}

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrapError(h.Name(), ctx.Err())
		}
		return nil, wrapError(h.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		h.logger.Warn("synthesis backend returned error",
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return nil, &SynthesisError{
			Kind:   KindServer,
			Engine: h.Name(),
			Err:    fmt.Errorf("%w: status %d", ErrSynthesisFailed, resp.StatusCode),
		}
	}

	var out httpSynthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return nil, wrapError(h.Name(), ctx.Err())
		}
		return nil, &SynthesisError{Kind: KindServer, Engine: h.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, &SynthesisError{Kind: KindServer, Engine: h.Name(), Err: fmt.Errorf("decode audio: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{Kind: KindEmpty, Engine: h.Name(), Err: ErrEmptyAudio}
	}

	h.logger.Debug("synthesis complete",
		"bytes", len(audio),
		"elapsed", time.Since(start),
	)

	return audioResultFromBytes(audio), nil
}

// audioResultFromBytes accepts either a WAV stream or headerless LINEAR16 at
// Piper's rate and always returns WAV.
func audioResultFromBytes(audio []byte) *AudioResult {
	if info, err := wav.Parse(audio); err == nil {
		return &AudioResult{
			Data:       audio,
			Format:     "wav",
			SampleRate: info.SampleRate,
			Channels:   info.Channels,
		}
	}
	return &AudioResult{
		Data:       wav.WrapRawPCM(audio, wav.PiperSampleRate, wav.PiperChannels, wav.PiperBitsPerSample),
		Format:     "wav",
		SampleRate: wav.PiperSampleRate,
		Channels:   wav.PiperChannels,
	}
}
