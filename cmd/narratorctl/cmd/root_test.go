package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dgnsrekt/narrator/internal/api"
	"github.com/dgnsrekt/narrator/internal/narration"
)

func TestSplitTopics(t *testing.T) {
	got := splitTopics(" alerts, ,narrator ,")
	if strings.Join(got, "|") != "alerts|narrator" {
		t.Errorf("splitTopics() = %q", got)
	}
	if splitTopics("") != nil {
		t.Error("expected no topics for empty input")
	}
}

func TestPrintSnapshot(t *testing.T) {
	snap := narration.Snapshot{
		SessionID:       "s1",
		Title:           "Guide",
		Phase:           narration.PhaseErrored,
		CurrentIndex:    1,
		TotalChunks:     4,
		OverallProgress: 0.25,
		LastError:       &narration.ErrorInfo{Kind: "timeout", Message: "deadline exceeded", ChunkIndex: 1},
	}

	var buf bytes.Buffer
	if err := printSnapshot(&buf, snap); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Phase:    errored", "Title:    Guide", "Chunk:    2/4", "Progress: 25.0%", "timeout on chunk 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printSnapshot(&buf, narration.Snapshot{Phase: narration.PhaseIdle})
	if buf.String() != "Phase:    idle\n" {
		t.Errorf("idle output = %q", buf.String())
	}
}

func TestStartAndTransportCommands(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var started api.StartRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/v1/narration/start" {
			json.NewDecoder(r.Body).Decode(&started)
		}
		json.NewEncoder(w).Encode(narration.Snapshot{Phase: narration.PhasePlaying, TotalChunks: 2})
	}))
	defer server.Close()

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(append([]string{"--url", server.URL}, args...))
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	out := run("start", "guide", "--language", "fr")
	if !strings.Contains(out, "Phase:    playing") {
		t.Errorf("start output = %q", out)
	}
	startLanguage = ""
	run("next")
	run("toggle")

	mu.Lock()
	defer mu.Unlock()
	if started.DocumentID != "guide" || started.Language != "fr" {
		t.Errorf("start request = %+v", started)
	}
	want := "POST /v1/narration/start,POST /v1/narration/skip-forward,POST /v1/narration/toggle"
	if got := strings.Join(paths, ","); got != want {
		t.Errorf("requests = %s, want %s", got, want)
	}
}
