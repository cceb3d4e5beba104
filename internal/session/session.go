// Package session runs one reader session: a single goroutine owns the playback engine,
// drives its tick, serializes user input and drains scene results.
package session

import (
	"context"
	"errors"
	"time"

	"manuscripta/internal/logger"
	"manuscripta/internal/models"
	"manuscripta/internal/playback"
)

const (
	defaultTickInterval = 20 * time.Millisecond
	commandQueueSize    = 16
)

// ErrStopped is returned by Session methods once Run has returned.
var ErrStopped = errors.New("session is not running")

// Prefetcher schedules scene fetches for chunks and reports their outcomes.
type Prefetcher interface {
	Enqueue(chunk string) bool
	Events() <-chan models.SceneEvent
	Generation() uint64
	Reset() uint64
	Close()
}

// Observer receives session output. Every method runs on the session goroutine and
// must return quickly.
type Observer interface {
	FrameChanged(fc playback.FrameChange)
	Revealed(snap playback.Snapshot)
	ImageReady(ev models.ImageReady)
	SceneFailed(ev models.SceneFailed)
}

// Options tunes a Session.
type Options struct {
	TickInterval time.Duration
	Paragraphs   int
}

type commandKind int

const (
	cmdLoad commandKind = iota
	cmdTogglePause
	cmdSkip
	cmdClose
	cmdSnapshot
)

type command struct {
	kind  commandKind
	text  string
	reply chan playback.Snapshot
}

// Session owns a playback engine and a prefetcher.
type Session struct {
	logger   logger.Logger
	prefetch Prefetcher
	observer Observer
	opts     Options
	engine   *playback.Engine

	commands chan command
	stopped  chan struct{}

	ticker *time.Ticker
	tickC  <-chan time.Time
	closed bool
}

// New creates a Session. Call Run to start it. A nil observer discards output.
func New(log logger.Logger, prefetch Prefetcher, observer Observer, opts Options) *Session {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if observer == nil {
		observer = nopObserver{}
	}
	s := &Session{
		logger:   log,
		prefetch: prefetch,
		observer: observer,
		opts:     opts,
		commands: make(chan command, commandQueueSize),
		stopped:  make(chan struct{}),
	}
	s.engine = playback.NewEngine(log, playback.Options{
		Paragraphs:     opts.Paragraphs,
		OnFrameChanged: s.onFrameChanged,
		OnReveal:       observer.Revealed,
	})
	return s
}

// Run processes ticks, commands and scene results until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.stopped)
	defer s.stopTicker()
	s.logger.Infof("Session loop started (tick %v)", s.opts.TickInterval)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.logger.Infof("Session loop stopped.")
			return ctx.Err()
		case <-s.tickC:
			if !s.engine.Tick() {
				s.stopTicker()
			}
		case cmd := <-s.commands:
			s.handle(cmd)
		case ev := <-s.prefetch.Events():
			s.handleEvent(ev)
		}
	}
}

// Load replaces the current document.
func (s *Session) Load(ctx context.Context, text string) error {
	return s.send(ctx, command{kind: cmdLoad, text: text})
}

// TogglePause pauses or resumes revealing.
func (s *Session) TogglePause(ctx context.Context) error {
	return s.send(ctx, command{kind: cmdTogglePause})
}

// Skip completes the current frame or advances to the next one.
func (s *Session) Skip(ctx context.Context) error {
	return s.send(ctx, command{kind: cmdSkip})
}

// Close ends the session. Later commands are no-ops and late scene results are dropped.
func (s *Session) Close(ctx context.Context) error {
	return s.send(ctx, command{kind: cmdClose})
}

// Snapshot returns the engine state as seen by the session goroutine.
func (s *Session) Snapshot(ctx context.Context) (playback.Snapshot, error) {
	reply := make(chan playback.Snapshot, 1)
	if err := s.send(ctx, command{kind: cmdSnapshot, reply: reply}); err != nil {
		return playback.Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-s.stopped:
		return playback.Snapshot{}, ErrStopped
	case <-ctx.Done():
		return playback.Snapshot{}, ctx.Err()
	}
}

func (s *Session) send(ctx context.Context, cmd command) error {
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}
	select {
	case s.commands <- cmd:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) handle(cmd command) {
	switch cmd.kind {
	case cmdLoad:
		if s.closed {
			s.logger.Debugf("Ignoring load on closed session")
			return
		}
		gen := s.prefetch.Reset()
		s.logger.Infof("Loading document (generation %d)", gen)
		s.engine.Load(cmd.text)
	case cmdTogglePause:
		s.engine.TogglePause()
	case cmdSkip:
		s.engine.Skip()
	case cmdClose:
		if s.closed {
			return
		}
		s.closed = true
		s.shutdown()
	case cmdSnapshot:
		cmd.reply <- s.engine.Snapshot()
		return
	}
	s.syncTicker()
}

func (s *Session) handleEvent(ev models.SceneEvent) {
	if s.closed {
		return
	}
	if gen := s.prefetch.Generation(); ev.Generation() != gen {
		s.logger.Debugf("Dropping stale scene result for %.40q (generation %d, current %d)", ev.Chunk(), ev.Generation(), gen)
		return
	}

	switch {
	case ev.Ready != nil:
		s.logger.Debugf("Scene image ready for %.40q: %s", ev.Ready.Chunk, ev.Ready.Artifact)
		s.observer.ImageReady(*ev.Ready)
	case ev.Failed != nil:
		s.logger.Debugf("Scene %s error for %.40q delivered: %v", ev.Failed.Err.Kind, ev.Failed.Chunk, ev.Failed.Err)
		s.observer.SceneFailed(*ev.Failed)
	}
}

func (s *Session) onFrameChanged(fc playback.FrameChange) {
	s.prefetch.Enqueue(fc.Text)
	s.prefetch.Enqueue(fc.Next)
	s.observer.FrameChanged(fc)
}

// syncTicker runs the ticker only while ticks can change the engine.
func (s *Session) syncTicker() {
	switch s.engine.State() {
	case playback.StateRevealing, playback.StateUserPaused, playback.StateFrameDone:
		s.startTicker()
	default:
		s.stopTicker()
	}
}

func (s *Session) startTicker() {
	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.opts.TickInterval)
	s.tickC = s.ticker.C
}

func (s *Session) stopTicker() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	s.tickC = nil
}

func (s *Session) shutdown() {
	s.stopTicker()
	s.engine.Close()
	s.prefetch.Close()
}

type nopObserver struct{}

func (nopObserver) FrameChanged(playback.FrameChange) {}
func (nopObserver) Revealed(playback.Snapshot)        {}
func (nopObserver) ImageReady(models.ImageReady)      {}
func (nopObserver) SceneFailed(models.SceneFailed)    {}
