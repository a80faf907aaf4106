package tts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies a synthesis failure.
type Kind string

const (
	// KindServer means the backend answered but refused or failed the request.
	KindServer Kind = "server"
	// KindNetwork means the backend could not be reached.
	KindNetwork Kind = "network"
	// KindTimeout means the call exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindEmpty means the backend returned no audio.
	KindEmpty Kind = "empty"
)

var (
	// ErrEmptyText is returned when a request carries no text.
	ErrEmptyText = errors.New("empty text")
	// ErrEmptyAudio is returned when synthesis produced zero bytes of audio.
	ErrEmptyAudio = errors.New("no audio returned")
	// ErrSynthesisFailed is returned when the backend failed the request.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
)

// SynthesisError is a classified synthesis failure.
type SynthesisError struct {
	Kind   Kind
	Engine string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Engine == "" {
		return fmt.Sprintf("synthesis %s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s synthesis %s error: %v", e.Engine, e.Kind, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Classify maps err to a failure kind. Errors that already carry a kind keep
// it. Cancellation is not a failure and is reported as ok == false.
func Classify(err error) (kind Kind, ok bool) {
	if err == nil {
		return "", false
	}

	var se *SynthesisError
	if errors.As(err, &se) {
		return se.Kind, true
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "", false
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, true
	case errors.Is(err, ErrEmptyAudio):
		return KindEmpty, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork, true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork, true
	}

	return KindServer, true
}

// wrapError wraps err as a *SynthesisError for engine. Cancellation passes
// through unchanged so callers can tell it apart from failures.
func wrapError(engine string, err error) error {
	if err == nil {
		return nil
	}
	kind, ok := Classify(err)
	if !ok {
		return err
	}
	var se *SynthesisError
	if errors.As(err, &se) {
		return err
	}
	return &SynthesisError{Kind: kind, Engine: engine, Err: err}
}
