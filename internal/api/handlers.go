package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgnsrekt/narrator/internal/documents"
	"github.com/dgnsrekt/narrator/internal/eventstore"
	"github.com/dgnsrekt/narrator/internal/narration"
)

// StartRequest is the body of POST /v1/narration/start. Either DocumentID or
// Text is required.
type StartRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Language   string `json:"language,omitempty"`
	Title      string `json:"title,omitempty"`
	Text       string `json:"text,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// EventsResponse is the body of GET /v1/narration/events.
type EventsResponse struct {
	SessionID string             `json:"session_id"`
	Events    []eventstore.Event `json:"events"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleSnapshot handles GET /v1/narration requests.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Snapshot())
}

// handleStart handles POST /v1/narration/start requests.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode start request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var doc narration.Document
	switch {
	case req.DocumentID != "":
		if s.deps.Documents == nil {
			writeError(w, http.StatusBadRequest, "document store is not configured")
			return
		}
		resolved, err := s.deps.Documents(r.Context(), req.DocumentID, req.Language)
		if errors.Is(err, documents.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		if err != nil {
			s.logger.Error("failed to load document", "document_id", req.DocumentID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load document")
			return
		}
		doc = resolved
	case strings.TrimSpace(req.Text) != "":
		doc = narration.Document{Title: req.Title, Text: req.Text, Language: req.Language}
	default:
		writeError(w, http.StatusBadRequest, "text or document_id is required")
		return
	}

	if err := s.deps.Controller.Start(r.Context(), doc); err != nil {
		s.writeControllerError(w, "start", err)
		return
	}

	s.logger.Info("narration start requested",
		"document_id", doc.ID,
		"text_length", len(doc.Text),
		"language", doc.Language,
	)
	writeJSON(w, http.StatusAccepted, s.deps.Controller.Snapshot())
}

// handleCommand returns a handler running a transport command.
func (s *Server) handleCommand(name string, fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			s.writeControllerError(w, name, err)
			return
		}
		s.logger.Debug("narration command", "command", name)
		writeJSON(w, http.StatusOK, s.deps.Controller.Snapshot())
	}
}

func (s *Server) writeControllerError(w http.ResponseWriter, command string, err error) {
	switch {
	case errors.Is(err, narration.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, narration.ErrSessionActive), errors.Is(err, narration.ErrNoDocument):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, narration.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("narration command failed", "command", command, "error", err)
		writeError(w, http.StatusInternalServerError, "command failed")
	}
}

// handleEvents handles GET /v1/narration/events requests. Without a
// session_id the latest recorded session is used.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeError(w, http.StatusNotFound, "event store is not configured")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		latest, err := s.deps.Events.LatestSession(r.Context())
		if errors.Is(err, eventstore.ErrNoSessions) {
			writeJSON(w, http.StatusOK, EventsResponse{Events: []eventstore.Event{}})
			return
		}
		if err != nil {
			s.logger.Error("failed to read latest session", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read events")
			return
		}
		sessionID = latest.ID
	}

	events, err := s.deps.Events.ListSessionEvents(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error("failed to list events", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	if events == nil {
		events = []eventstore.Event{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{SessionID: sessionID, Events: events})
}
