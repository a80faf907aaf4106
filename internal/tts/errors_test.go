package tts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   Kind
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"cancelled", context.Canceled, "", false},
		{"wrapped cancel", fmt.Errorf("run: %w", context.Canceled), "", false},
		{"deadline", context.DeadlineExceeded, KindTimeout, true},
		{"net timeout", &url.Error{Op: "Post", URL: "http://x", Err: timeoutError{}}, KindTimeout, true},
		{"refused", &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}, KindNetwork, true},
		{"op error", &net.OpError{Op: "read", Err: errors.New("reset")}, KindNetwork, true},
		{"empty audio", ErrEmptyAudio, KindEmpty, true},
		{"other", errors.New("exit status 1"), KindServer, true},
		{"already classified", &SynthesisError{Kind: KindEmpty, Err: errors.New("x")}, KindEmpty, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := Classify(tt.err)
			if kind != tt.want || ok != tt.wantOK {
				t.Errorf("Classify(%v) = (%q, %v), want (%q, %v)", tt.err, kind, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSynthesisError_Unwrap(t *testing.T) {
	err := wrapError("http", context.DeadlineExceeded)

	var se *SynthesisError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SynthesisError, got %T", err)
	}
	if se.Kind != KindTimeout {
		t.Errorf("kind = %s, want timeout", se.Kind)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected error to unwrap to context.DeadlineExceeded")
	}
	if got := se.Error(); got != "http synthesis timeout error: context deadline exceeded" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrapError_PassesCancellation(t *testing.T) {
	if err := wrapError("exec", context.Canceled); err != context.Canceled {
		t.Errorf("expected context.Canceled unchanged, got %v", err)
	}
	if err := wrapError("exec", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
