package narration

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/narrator/internal/chunker"
	"github.com/dgnsrekt/narrator/internal/playback"
	"github.com/dgnsrekt/narrator/internal/tts"
	"github.com/google/uuid"
)

// Player is one loadable audio resource. *playback.Session implements it.
type Player interface {
	Load(ctx context.Context, payload []byte) error
	Play() error
	Pause() error
	Resume() error
	Unload()
}

// PlayerFactory creates a player that reports to hooks.
type PlayerFactory func(hooks playback.Hooks) Player

// Options configures a Controller.
type Options struct {
	Engine    tts.Engine
	NewPlayer PlayerFactory
	// Voices maps a document language to a voice. Defaults to tts.DefaultVoiceMap.
	Voices *tts.VoiceMap
	// DefaultLanguage is used for documents without a language.
	DefaultLanguage string
	// MaxChunkChars bounds chunk size. Zero selects chunker.MaxChunkChars.
	MaxChunkChars int
	// SynthesisTimeout bounds synthesis plus load of one chunk. Zero disables it.
	SynthesisTimeout time.Duration
	// IdleTimeout is how long the controller rests before the idle callback fires.
	IdleTimeout time.Duration
}

// IdleCallback is called from the controller loop after IdleTimeout without
// an active session.
type IdleCallback func()

// Controller owns the narration session. All state changes happen on one
// goroutine; commands and playback events are messages to it.
type Controller struct {
	opts   Options
	logger *slog.Logger

	cmds     chan command
	box      *mailbox
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	snap atomic.Pointer[Snapshot]

	mu           sync.Mutex
	listeners    map[int]Listener
	nextListener int
	idleCallback IdleCallback

	// s is owned by the loop goroutine.
	s session
}

type session struct {
	id         string
	documentID string
	title      string
	language   string
	chunks     []chunker.Chunk
	index      int
	phase      Phase
	player     Player
	lastError  *ErrorInfo
	position   time.Duration
	duration   time.Duration
	// finished is set when the last chunk completed naturally.
	finished bool

	// gen increments whenever outstanding work becomes stale.
	gen            uint64
	synthCancel    context.CancelFunc
	synthInflight  bool
	restartPending bool
}

type command struct {
	fn    func() error
	reply chan error
}

type synthResult struct {
	gen    uint64
	index  int
	player Player
	err    error
}

type statusEvent struct {
	gen    uint64
	status playback.Status
}

type completeEvent struct {
	gen uint64
}

type playerErrorEvent struct {
	gen uint64
	err error
}

// NewController creates a controller and starts its loop. Call Shutdown to
// release it.
func NewController(opts Options, logger *slog.Logger) *Controller {
	if opts.Voices == nil {
		opts.Voices = tts.DefaultVoiceMap()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:      opts,
		logger:    logger.With("component", "narration"),
		cmds:      make(chan command),
		box:       newMailbox(),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]Listener),
	}
	sn := c.snapshot()
	c.snap.Store(&sn)

	go c.loop()
	return c
}

// SetIdleCallback sets the function called when the controller goes idle.
func (c *Controller) SetIdleCallback(fn IdleCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idleCallback = fn
}

// Subscribe registers l for every event and returns a function removing it.
func (c *Controller) Subscribe(l Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Snapshot returns the latest published state.
func (c *Controller) Snapshot() Snapshot {
	return *c.snap.Load()
}

// Shutdown stops the session, waits for in-flight work to drain and stops
// the loop. Later commands return ErrClosed.
func (c *Controller) Shutdown() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	<-c.done
}

// Start begins narrating doc. It fails with ErrSessionActive while a
// session is generating, playing or paused, and with ErrInvalidDocument when
// doc has no text.
func (c *Controller) Start(ctx context.Context, doc Document) error {
	return c.do(ctx, func() error {
		if c.s.phase.Active() {
			return ErrSessionActive
		}
		if strings.TrimSpace(doc.Text) == "" {
			return ErrInvalidDocument
		}

		chunks := chunker.Split(doc.Text, c.opts.MaxChunkChars)
		c.invalidate()

		language := doc.Language
		if language == "" {
			language = c.opts.DefaultLanguage
		}
		c.s.id = uuid.NewString()
		c.s.documentID = doc.ID
		c.s.title = doc.Title
		c.s.language = language
		c.s.chunks = chunks
		c.s.index = 0
		c.s.lastError = nil
		c.s.finished = false

		c.logger.Info("narration started",
			"session_id", c.s.id,
			"document_id", doc.ID,
			"language", language,
			"total_chunks", len(chunks),
		)
		c.beginGenerating()
		return nil
	})
}

// TogglePlayPause pauses a playing session, resumes a paused one, and
// restarts a stopped or failed one at its current chunk.
func (c *Controller) TogglePlayPause() error {
	return c.do(context.Background(), func() error {
		switch c.s.phase {
		case PhasePlaying:
			if err := c.s.player.Pause(); err != nil {
				c.fail(&playback.PlaybackError{Op: "pause", Err: err})
				return nil
			}
			c.s.phase = PhasePaused
			c.publish(EventPhase)
		case PhasePaused:
			if err := c.s.player.Resume(); err != nil {
				c.fail(&playback.PlaybackError{Op: "resume", Err: err})
				return nil
			}
			c.s.phase = PhasePlaying
			c.publish(EventPhase)
		case PhaseGenerating:
		default:
			if len(c.s.chunks) == 0 {
				return ErrNoDocument
			}
			c.invalidate()
			c.s.lastError = nil
			c.s.finished = false
			c.beginGenerating()
		}
		return nil
	})
}

// Stop ends the session from any phase and returns to idle. It never fails.
func (c *Controller) Stop() error {
	err := c.do(context.Background(), func() error {
		c.invalidate()
		if c.reset() {
			c.logger.Info("narration stopped")
			c.publish(EventPhase)
		}
		return nil
	})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// reset clears the session back to idle and reports whether there was one.
func (c *Controller) reset() bool {
	wasIdle := c.s.phase == PhaseIdle && len(c.s.chunks) == 0
	c.s.id = ""
	c.s.documentID = ""
	c.s.title = ""
	c.s.chunks = nil
	c.s.index = 0
	c.s.lastError = nil
	c.s.finished = false
	c.s.phase = PhaseIdle
	return !wasIdle
}

// SkipForward moves to the next chunk. It does nothing at the last chunk.
func (c *Controller) SkipForward() error {
	return c.skip(1)
}

// SkipBackward moves to the previous chunk. It does nothing at the first chunk.
func (c *Controller) SkipBackward() error {
	return c.skip(-1)
}

func (c *Controller) skip(delta int) error {
	return c.do(context.Background(), func() error {
		if len(c.s.chunks) == 0 {
			return ErrNoDocument
		}
		target := min(max(c.s.index+delta, 0), len(c.s.chunks)-1)
		if target == c.s.index {
			return nil
		}

		c.invalidate()
		c.s.index = target
		c.s.lastError = nil
		c.s.finished = false
		c.logger.Info("skipping to chunk", "chunk_index", target)
		c.beginGenerating()
		return nil
	})
}

// do runs fn on the loop and returns its result.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) loop() {
	defer close(c.done)

	var idleTimer *time.Timer
	var idleCh <-chan time.Time
	idleFired := false

	updateIdle := func() {
		if c.s.phase.Active() {
			if idleTimer != nil {
				idleTimer.Stop()
			}
			idleCh = nil
			idleFired = false
			return
		}
		if c.opts.IdleTimeout > 0 && idleCh == nil && !idleFired {
			idleTimer = time.NewTimer(c.opts.IdleTimeout)
			idleCh = idleTimer.C
		}
	}
	updateIdle()

	for {
		select {
		case <-c.stopCh:
			if idleTimer != nil {
				idleTimer.Stop()
			}
			c.drainAndClose()
			return
		case cmd := <-c.cmds:
			cmd.reply <- cmd.fn()
		case <-c.box.notify:
			for _, ev := range c.box.drain() {
				c.handle(ev)
			}
		case <-idleCh:
			idleCh = nil
			idleFired = true
			c.mu.Lock()
			callback := c.idleCallback
			c.mu.Unlock()
			if callback != nil {
				c.logger.Info("idle timeout reached")
				callback()
			}
		}
		updateIdle()
	}
}

// drainAndClose releases the session and waits for an outstanding synthesis
// so its player, if any, is unloaded too.
func (c *Controller) drainAndClose() {
	c.invalidate()
	c.cancel()
	for c.s.synthInflight {
		for _, ev := range c.box.drain() {
			if r, ok := ev.(synthResult); ok {
				c.s.synthInflight = false
				if r.player != nil {
					r.player.Unload()
				}
			}
		}
		if c.s.synthInflight {
			<-c.box.notify
		}
	}
	if c.reset() {
		c.logger.Info("narration stopped on shutdown")
		c.publish(EventPhase)
	}
	c.logger.Debug("narration controller closed")
}

func (c *Controller) handle(ev any) {
	switch e := ev.(type) {
	case synthResult:
		c.onSynthResult(e)
	case statusEvent:
		if e.gen != c.s.gen || c.s.player == nil {
			return
		}
		c.s.position = e.status.Position
		c.s.duration = e.status.Duration
		c.publish(EventProgress)
	case completeEvent:
		if e.gen != c.s.gen || c.s.player == nil {
			return
		}
		c.advance()
	case playerErrorEvent:
		if e.gen != c.s.gen || c.s.player == nil {
			return
		}
		c.fail(e.err)
	}
}

func (c *Controller) onSynthResult(r synthResult) {
	c.s.synthInflight = false
	c.s.synthCancel = nil

	if r.gen != c.s.gen || c.s.phase != PhaseGenerating {
		if r.player != nil {
			r.player.Unload()
		}
		c.logger.Debug("dropped stale synthesis result", "chunk_index", r.index)
		if c.s.restartPending {
			c.s.restartPending = false
			if c.s.phase == PhaseGenerating {
				c.launch()
			}
		}
		return
	}

	if r.err != nil {
		c.fail(r.err)
		return
	}

	c.s.player = r.player
	if err := r.player.Play(); err != nil {
		c.fail(&playback.PlaybackError{Op: "play", Err: err})
		return
	}
	c.s.phase = PhasePlaying
	c.logger.Debug("chunk playing", "chunk_index", c.s.index)
	c.publish(EventPhase)
}

// advance handles natural completion of the current chunk.
func (c *Controller) advance() {
	c.invalidate()
	if c.s.index+1 < len(c.s.chunks) {
		c.s.index++
		c.beginGenerating()
		return
	}

	c.s.phase = PhaseStopped
	c.s.index = 0
	c.s.finished = true
	c.logger.Info("narration finished", "session_id", c.s.id, "total_chunks", len(c.s.chunks))
	c.publish(EventPhase)
}

func (c *Controller) beginGenerating() {
	c.s.phase = PhaseGenerating
	c.s.position = 0
	c.s.duration = 0
	c.publish(EventChunk)

	if c.s.synthInflight {
		// The cancelled call must return before the next one is issued.
		c.s.restartPending = true
		return
	}
	c.launch()
}

// launch synthesizes and loads the current chunk off the loop.
func (c *Controller) launch() {
	chunk := c.s.chunks[c.s.index]
	gen := c.s.gen
	voice := c.opts.Voices.Resolve(c.s.language)

	var ctx context.Context
	var cancel context.CancelFunc
	if c.opts.SynthesisTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.opts.SynthesisTimeout)
	} else {
		ctx, cancel = context.WithCancel(c.ctx)
	}
	c.s.synthInflight = true
	c.s.synthCancel = cancel

	c.logger.Info("synthesizing chunk",
		"session_id", c.s.id,
		"chunk_index", chunk.Index,
		"total_chunks", len(c.s.chunks),
		"chunk_chars", chunk.Length,
		"voice", voice.Name,
	)

	hooks := c.hooks(gen)
	go func() {
		defer cancel()

		result, err := c.opts.Engine.Synthesize(ctx, tts.SynthesizeRequest{Text: chunk.Text, Voice: voice})
		if err != nil {
			c.box.post(synthResult{gen: gen, index: chunk.Index, err: err})
			return
		}

		player := c.opts.NewPlayer(hooks)
		if err := player.Load(ctx, result.Data); err != nil {
			var pe *playback.PlaybackError
			if !errors.As(err, &pe) {
				err = &playback.PlaybackError{Op: "load", Err: err}
			}
			c.box.post(synthResult{gen: gen, index: chunk.Index, err: err})
			return
		}
		c.box.post(synthResult{gen: gen, index: chunk.Index, player: player})
	}()
}

func (c *Controller) hooks(gen uint64) playback.Hooks {
	return playback.Hooks{
		OnStatus: func(st playback.Status) {
			c.box.post(statusEvent{gen: gen, status: st})
		},
		OnComplete: func() {
			c.box.post(completeEvent{gen: gen})
		},
		OnError: func(err error) {
			c.box.post(playerErrorEvent{gen: gen, err: err})
		},
	}
}

// invalidate makes all outstanding work stale and releases the player.
func (c *Controller) invalidate() {
	c.s.gen++
	if c.s.synthCancel != nil {
		c.s.synthCancel()
		c.s.synthCancel = nil
	}
	c.s.restartPending = false
	if c.s.player != nil {
		c.s.player.Unload()
		c.s.player = nil
	}
	c.s.position = 0
	c.s.duration = 0
}

func (c *Controller) fail(err error) {
	index := c.s.index
	c.invalidate()
	c.s.phase = PhaseErrored
	c.s.lastError = &ErrorInfo{
		Kind:       errorKind(err),
		Message:    err.Error(),
		ChunkIndex: index,
	}
	c.logger.Error("narration failed",
		"session_id", c.s.id,
		"chunk_index", index,
		"kind", c.s.lastError.Kind,
		"error", err,
	)
	c.publish(EventError)
}

func errorKind(err error) string {
	var pe *playback.PlaybackError
	if errors.As(err, &pe) {
		return "playback"
	}
	if kind, ok := tts.Classify(err); ok {
		return string(kind)
	}
	return "unknown"
}

func (c *Controller) snapshot() Snapshot {
	total := len(c.s.chunks)
	sn := Snapshot{
		SessionID:      c.s.id,
		DocumentID:     c.s.documentID,
		Title:          c.s.title,
		Phase:          c.s.phase,
		CurrentIndex:   c.s.index,
		TotalChunks:    total,
		PositionMillis: c.s.position.Milliseconds(),
		DurationMillis: c.s.duration.Milliseconds(),
	}
	if c.s.finished {
		sn.ChunkProgress = 1
		sn.OverallProgress = 1
	} else {
		sn.ChunkProgress = chunkFraction(c.s.position, c.s.duration)
		sn.OverallProgress = Aggregate(c.s.index, total, c.s.position, c.s.duration)
		// 1 is reported only once the last chunk has completed.
		if sn.OverallProgress >= 1 {
			sn.OverallProgress = math.Nextafter(1, 0)
		}
	}
	if c.s.lastError != nil {
		e := *c.s.lastError
		sn.LastError = &e
	}
	return sn
}

func (c *Controller) publish(t EventType) {
	sn := c.snapshot()
	c.snap.Store(&sn)

	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	ev := Event{Type: t, Snapshot: sn}
	for _, l := range listeners {
		l(ev)
	}
}
