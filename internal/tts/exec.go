package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// ErrEmptyCommand is returned when the exec engine command is blank.
var ErrEmptyCommand = errors.New("tts command empty")

// ExecEngine runs an external synthesizer. The command receives one JSON
// request on stdin and must print one JSON response on stdout.
type ExecEngine struct {
	cmd    []string
	logger *slog.Logger
}

type execRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Voice        string `json:"voice"`
}

type execResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

// NewExecEngine parses command with shell quoting rules.
func NewExecEngine(command string, logger *slog.Logger) (*ExecEngine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return &ExecEngine{cmd: args, logger: logger.With("component", "tts-exec")}, nil
}

// Name returns the engine identifier.
func (e *ExecEngine) Name() string {
	return "exec"
}

// Synthesize runs the command once for req.
func (e *ExecEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	payload, err := json.Marshal(execRequest{
		Text:         req.Text,
		LanguageCode: req.Voice.LanguageCode,
		Voice:        req.Voice.Name,
	})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, wrapError(e.Name(), ctx.Err())
		}
		e.logger.Error("tts command failed", "error", err, "stderr", stderr.String())
		return nil, &SynthesisError{
			Kind:   KindServer,
			Engine: e.Name(),
			Err:    fmt.Errorf("%w: %v", ErrSynthesisFailed, err),
		}
	}

	if stdout.Len() == 0 {
		return nil, &SynthesisError{Kind: KindEmpty, Engine: e.Name(), Err: ErrEmptyAudio}
	}

	var resp execResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return nil, &SynthesisError{Kind: KindServer, Engine: e.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, &SynthesisError{Kind: KindServer, Engine: e.Name(), Err: fmt.Errorf("decode audio: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{Kind: KindEmpty, Engine: e.Name(), Err: ErrEmptyAudio}
	}

	return audioResultFromBytes(audio), nil
}
