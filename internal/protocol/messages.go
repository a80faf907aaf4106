// Package protocol defines the JSON messages exchanged on the bus.
package protocol

import (
	"time"

	"github.com/dgnsrekt/narrator/internal/narration"
)

// Command names accepted on the command subject.
const (
	CommandStart        = "start"
	CommandToggle       = "toggle"
	CommandStop         = "stop"
	CommandSkipForward  = "skip_forward"
	CommandSkipBackward = "skip_backward"
	CommandStatus       = "status"
)

// Subject suffixes appended to the configured prefix.
const (
	SubjectStatusSuffix  = "status"
	SubjectCommandSuffix = "command"
)

// StatusSubject returns the subject snapshots are published on.
func StatusSubject(prefix string) string {
	return prefix + "." + SubjectStatusSuffix
}

// CommandSubject returns the subject commands are received on.
func CommandSubject(prefix string) string {
	return prefix + "." + SubjectCommandSuffix
}

// StatusMessage is published for every recorded controller event.
type StatusMessage struct {
	Event     narration.EventType `json:"event"`
	Snapshot  narration.Snapshot  `json:"snapshot"`
	Timestamp time.Time           `json:"timestamp"`
}

// CommandMessage asks the narrator to act. Start takes either DocumentID or Text.
type CommandMessage struct {
	Command    string `json:"command"`
	DocumentID string `json:"document_id,omitempty"`
	Language   string `json:"language,omitempty"`
	Title      string `json:"title,omitempty"`
	Text       string `json:"text,omitempty"`
}

// CommandReply answers a CommandMessage sent as a request.
type CommandReply struct {
	OK       bool                `json:"ok"`
	Error    string              `json:"error,omitempty"`
	Snapshot *narration.Snapshot `json:"snapshot,omitempty"`
}
