// Package narration drives chunk-by-chunk synthesis and playback of a
// document.
package narration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDocument is returned by Start for documents with no text.
	ErrInvalidDocument = errors.New("document has no text")
	// ErrSessionActive is returned by Start while a session is running.
	ErrSessionActive = errors.New("narration session already active")
	// ErrNoDocument is returned by transport commands when nothing is loaded.
	ErrNoDocument = errors.New("no document loaded")
	// ErrClosed is returned by commands after Shutdown.
	ErrClosed = errors.New("narration controller closed")
)

// Phase is the controller's state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseGenerating
	PhasePlaying
	PhasePaused
	PhaseStopped
	PhaseErrored
)

var phaseNames = [...]string{"idle", "generating", "playing", "paused", "stopped", "errored"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Active reports whether a session is in progress.
func (p Phase) Active() bool {
	return p == PhaseGenerating || p == PhasePlaying || p == PhasePaused
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range phaseNames {
		if n == name {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", name)
}

// Document is the narration source.
type Document struct {
	ID       string
	Title    string
	Text     string
	Language string
}

// ErrorInfo describes the failure that moved a session to PhaseErrored.
type ErrorInfo struct {
	// Kind is a synthesis kind (server, network, timeout, empty) or "playback".
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	ChunkIndex int    `json:"chunk_index"`
}

// Snapshot is a read-only view of the controller state.
type Snapshot struct {
	SessionID       string     `json:"session_id,omitempty"`
	DocumentID      string     `json:"document_id,omitempty"`
	Title           string     `json:"title,omitempty"`
	Phase           Phase      `json:"phase"`
	CurrentIndex    int        `json:"current_index"`
	TotalChunks     int        `json:"total_chunks"`
	ChunkProgress   float64    `json:"chunk_progress"`
	OverallProgress float64    `json:"overall_progress"`
	PositionMillis  int64      `json:"position_ms"`
	DurationMillis  int64      `json:"duration_ms"`
	LastError       *ErrorInfo `json:"last_error,omitempty"`
}

// EventType says what changed in a snapshot.
type EventType string

const (
	// EventPhase is a phase change.
	EventPhase EventType = "phase"
	// EventChunk is the start of processing for a chunk.
	EventChunk EventType = "chunk"
	// EventProgress is a playback position update.
	EventProgress EventType = "progress"
	// EventError is a session failure.
	EventError EventType = "error"
)

// Event pairs a change with the snapshot after it.
type Event struct {
	Type     EventType `json:"type"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Listener receives events from the controller loop. It must not block and
// must not call controller commands.
type Listener func(Event)
