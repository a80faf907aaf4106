package eventstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgnsrekt/narrator/internal/narration"
	"github.com/dgnsrekt/narrator/internal/queue"
)

// DefaultRecorderCapacity bounds the events waiting to be written.
const DefaultRecorderCapacity = 256

// Recorder writes controller events to a Store off the controller loop.
// Progress ticks are not recorded.
type Recorder struct {
	store  *Store
	queue  *queue.Queue[narration.Event]
	logger *slog.Logger
	clock  func() time.Time

	// lastSession is owned by the queue worker.
	lastSession string
}

// NewRecorder creates a recorder. Call Start before subscribing it and Close
// to flush pending writes.
func NewRecorder(store *Store, capacity int, logger *slog.Logger) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	r := &Recorder{
		store:  store,
		logger: logger.With("component", "recorder"),
		clock:  time.Now,
	}
	r.queue = queue.New(capacity, r.write, r.logger)
	return r
}

// Start begins writing.
func (r *Recorder) Start() {
	r.queue.Start()
}

// Close writes what is pending and stops the recorder. When ctx ends first
// the write in progress is cancelled and the rest are dropped.
func (r *Recorder) Close(ctx context.Context) error {
	if n := r.queue.Len(); n > 0 {
		r.logger.Debug("flushing recorder", "pending", n)
	}
	done := make(chan struct{})
	go func() {
		r.queue.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.queue.Abort()
		<-done
		r.logger.Warn("recorder closed before flushing", "error", ctx.Err())
		return ctx.Err()
	}
}

// Record is a narration.Listener. It never blocks; events are dropped when
// the store falls behind.
func (r *Recorder) Record(ev narration.Event) {
	if ev.Type == narration.EventProgress {
		return
	}
	if err := r.queue.Enqueue(ev); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			r.logger.Warn("event dropped, recorder queue full", "type", ev.Type)
		}
	}
}

func (r *Recorder) write(ctx context.Context, ev narration.Event) error {
	sn := ev.Snapshot
	sessionID := sn.SessionID
	if sessionID == "" {
		// Stop clears the session before publishing.
		sessionID = r.lastSession
	}
	if sessionID == "" {
		return nil
	}

	now := r.clock()
	if sessionID != r.lastSession {
		err := r.store.AppendSession(ctx, Session{
			ID:          sessionID,
			DocumentID:  sn.DocumentID,
			Title:       sn.Title,
			TotalChunks: sn.TotalChunks,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		r.lastSession = sessionID
	}

	evt := Event{
		SessionID:  sessionID,
		Type:       string(ev.Type),
		Phase:      sn.Phase.String(),
		ChunkIndex: sn.CurrentIndex,
		Progress:   sn.OverallProgress,
		CreatedAt:  now,
	}
	if sn.LastError != nil {
		evt.ErrorKind = sn.LastError.Kind
		evt.ErrorMessage = sn.LastError.Message
	}
	return r.store.AppendEvent(ctx, evt)
}
