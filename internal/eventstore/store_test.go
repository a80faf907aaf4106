package eventstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/narrator/internal/narration"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "data", "events.db")
	}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	return es
}

func TestAppendAndQuery(t *testing.T) {
	es := openStore(t, Config{})
	ctx := context.Background()

	if err := es.AppendSession(ctx, Session{ID: "session-123", DocumentID: "doc", TotalChunks: 3}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	for i, phase := range []string{"generating", "playing"} {
		evt := Event{SessionID: "session-123", Type: "phase", Phase: phase, ChunkIndex: i, Progress: 0.5}
		if err := es.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}

	events, err := es.ListSessionEvents(ctx, "session-123", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Phase != "generating" || events[1].Phase != "playing" {
		t.Errorf("unexpected order: %+v", events)
	}
	if events[1].ChunkIndex != 1 || events[1].Progress != 0.5 || events[1].CreatedAt.IsZero() {
		t.Errorf("unexpected event: %+v", events[1])
	}

	limited, err := es.ListSessionEvents(ctx, "session-123", 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit ignored: %d, %v", len(limited), err)
	}
}

func TestLatestSession(t *testing.T) {
	es := openStore(t, Config{})
	ctx := context.Background()

	if _, err := es.LatestSession(ctx); !errors.Is(err, ErrNoSessions) {
		t.Fatalf("LatestSession() error = %v, want ErrNoSessions", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	es.AppendSession(ctx, Session{ID: "older", CreatedAt: base})
	es.AppendSession(ctx, Session{ID: "newer", Title: "Latest", CreatedAt: base.Add(time.Minute)})

	got, err := es.LatestSession(ctx)
	if err != nil {
		t.Fatalf("LatestSession() error = %v", err)
	}
	if got.ID != "newer" || got.Title != "Latest" || !got.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("LatestSession() = %+v", got)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	es := openStore(t, Config{RetentionDays: 1, MaxSessions: 1})
	ctx := context.Background()

	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(ctx, Session{ID: "old-session"}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendEvent(ctx, Event{SessionID: "old-session", Type: "phase", Phase: "playing"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(ctx, Session{ID: "new-session"}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListSessionEvents(ctx, "old-session", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old session pruned")
	}
	if got, err := es.LatestSession(ctx); err != nil || got.ID != "new-session" {
		t.Errorf("LatestSession() = %+v, %v", got, err)
	}
}

func TestPruneKeepsNewestSessions(t *testing.T) {
	es := openStore(t, Config{MaxSessions: 2})
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		es.AppendSession(ctx, Session{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		es.AppendEvent(ctx, Event{SessionID: id, Type: "phase", Phase: "playing"})
	}
	if err := es.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if events, _ := es.ListSessionEvents(ctx, "a", 10); len(events) != 0 {
		t.Errorf("oldest session kept %d events, want cascade delete", len(events))
	}
	if events, _ := es.ListSessionEvents(ctx, "c", 10); len(events) != 1 {
		t.Errorf("newest session has %d events, want 1", len(events))
	}
}

func TestRecorder(t *testing.T) {
	es := openStore(t, Config{})
	rec := NewRecorder(es, 0, newLogger())
	rec.Start()

	snap := func(phase narration.Phase, index int) narration.Snapshot {
		return narration.Snapshot{SessionID: "s1", DocumentID: "doc", Title: "T", Phase: phase, CurrentIndex: index, TotalChunks: 2}
	}
	rec.Record(narration.Event{Type: narration.EventChunk, Snapshot: snap(narration.PhaseGenerating, 0)})
	rec.Record(narration.Event{Type: narration.EventPhase, Snapshot: snap(narration.PhasePlaying, 0)})
	rec.Record(narration.Event{Type: narration.EventProgress, Snapshot: snap(narration.PhasePlaying, 0)})
	failed := snap(narration.PhaseErrored, 1)
	failed.LastError = &narration.ErrorInfo{Kind: "network", Message: "down", ChunkIndex: 1}
	rec.Record(narration.Event{Type: narration.EventError, Snapshot: failed})
	// Stop publishes with the session already cleared.
	rec.Record(narration.Event{Type: narration.EventPhase, Snapshot: narration.Snapshot{Phase: narration.PhaseIdle}})
	if err := rec.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	ctx := context.Background()
	sess, err := es.LatestSession(ctx)
	if err != nil {
		t.Fatalf("LatestSession() error = %v", err)
	}
	if sess.ID != "s1" || sess.DocumentID != "doc" || sess.TotalChunks != 2 {
		t.Errorf("session = %+v", sess)
	}

	events, err := es.ListSessionEvents(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	wantPhases := []string{"generating", "playing", "errored", "idle"}
	if len(events) != len(wantPhases) {
		t.Fatalf("recorded %d events, want %d: %+v", len(events), len(wantPhases), events)
	}
	for i, want := range wantPhases {
		if events[i].Phase != want {
			t.Errorf("event %d phase = %s, want %s", i, events[i].Phase, want)
		}
	}
	if events[2].ErrorKind != "network" || events[2].ChunkIndex != 1 {
		t.Errorf("error event = %+v", events[2])
	}
}

func TestRecorderCloseHonorsDeadline(t *testing.T) {
	es := openStore(t, Config{})
	rec := NewRecorder(es, 0, newLogger())

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	rec.clock = func() time.Time {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return time.Now()
	}
	rec.Start()

	for i := 0; i < 3; i++ {
		rec.Record(narration.Event{Type: narration.EventPhase, Snapshot: narration.Snapshot{SessionID: "s1", Phase: narration.PhasePlaying}})
	}
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder never started writing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	closed := make(chan error, 1)
	go func() { closed <- rec.Close(ctx) }()

	// Abort drops what is still queued; only then let the blocked write go.
	deadline := time.Now().Add(2 * time.Second)
	for rec.queue.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("pending events were not dropped")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)

	select {
	case err := <-closed:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Close() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}
	if _, err := es.LatestSession(context.Background()); !errors.Is(err, ErrNoSessions) {
		t.Errorf("LatestSession() error = %v, want ErrNoSessions", err)
	}
}
