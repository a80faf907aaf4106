package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dgnsrekt/narrator/internal/api"
	"github.com/dgnsrekt/narrator/internal/narration"
)

func TestClientCommands(t *testing.T) {
	var mu sync.Mutex
	var gotMethod, gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotMethod, gotPath, gotAuth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(narration.Snapshot{Phase: narration.PhasePaused, CurrentIndex: 2})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret", 0)
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() (narration.Snapshot, error)
		method string
		path   string
	}{
		{"toggle", func() (narration.Snapshot, error) { return client.Toggle(ctx) }, "POST", "/v1/narration/toggle"},
		{"stop", func() (narration.Snapshot, error) { return client.Stop(ctx) }, "POST", "/v1/narration/stop"},
		{"next", func() (narration.Snapshot, error) { return client.SkipForward(ctx) }, "POST", "/v1/narration/skip-forward"},
		{"prev", func() (narration.Snapshot, error) { return client.SkipBackward(ctx) }, "POST", "/v1/narration/skip-backward"},
		{"status", func() (narration.Snapshot, error) { return client.Snapshot(ctx) }, "GET", "/v1/narration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := tt.call()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			mu.Lock()
			defer mu.Unlock()
			if gotMethod != tt.method || gotPath != tt.path {
				t.Errorf("request = %s %s, want %s %s", gotMethod, gotPath, tt.method, tt.path)
			}
			if gotAuth != "Bearer secret" {
				t.Errorf("Authorization = %q", gotAuth)
			}
			if snap.Phase != narration.PhasePaused || snap.CurrentIndex != 2 {
				t.Errorf("snapshot = %+v", snap)
			}
		})
	}
}

func TestClientStart(t *testing.T) {
	var mu sync.Mutex
	var got api.StartRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(narration.Snapshot{SessionID: "s1", Phase: narration.PhaseGenerating})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	snap, err := client.Start(context.Background(), api.StartRequest{DocumentID: "guide", Language: "fr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got.DocumentID != "guide" || got.Language != "fr" {
		t.Errorf("request = %+v", got)
	}
	if snap.SessionID != "s1" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/narration/stop" {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "no document loaded"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)

	_, err := client.Toggle(context.Background())
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if apiErr := err.(*APIError); apiErr.Message != "no document loaded" {
		t.Errorf("message = %q", apiErr.Message)
	}

	_, err = client.Stop(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusBadGateway || apiErr.Message != "upstream down" {
		t.Errorf("error = %v", err)
	}
	if IsConflict(err) {
		t.Error("502 reported as conflict")
	}
}

func TestClientEvents(t *testing.T) {
	var mu sync.Mutex
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotQuery = r.URL.RawQuery
		mu.Unlock()
		json.NewEncoder(w).Encode(api.EventsResponse{SessionID: "s9"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	resp, err := client.Events(context.Background(), "s9", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotQuery != "limit=5&session_id=s9" {
		t.Errorf("query = %q", gotQuery)
	}
	if resp.SessionID != "s9" {
		t.Errorf("response = %+v", resp)
	}
}
