// Package playback reveals a document frame by frame, one character per tick.
//
// The engine is owned by a single goroutine. Nothing in it blocks: frame changes are
// reported through OnFrameChanged, which must schedule work and return.
package playback

import (
	"manuscripta/internal/logger"
	"manuscripta/internal/pager"
)

// State is the engine's position in the reveal cycle.
type State int

const (
	// StateIdle means no document is loaded.
	StateIdle State = iota
	// StateRevealing advances one character per tick.
	StateRevealing
	// StateFrameDone is the automatic pause after a frame is fully shown.
	StateFrameDone
	// StateUserPaused is an explicit pause toggled by the reader.
	StateUserPaused
	// StateFinished means the whole document has been shown; ticks are no-ops.
	StateFinished
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRevealing:
		return "revealing"
	case StateFrameDone:
		return "frame_done"
	case StateUserPaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FrameChange describes a newly entered frame and the one after it.
type FrameChange struct {
	Start int
	End   int
	Text  string
	// Next is the look-ahead frame text, empty at the end of the document.
	Next string
}

// Snapshot is a copy of the engine's observable state.
type Snapshot struct {
	State        State
	FrameStart   int
	FrameEnd     int
	Revealed     int
	ResumeCursor int
	FrameText    string
	RevealedText string
	DocumentLen  int
}

// Paused reports whether ticks currently reveal nothing because of a pause.
func (s Snapshot) Paused() bool {
	return s.State == StateUserPaused || s.State == StateFrameDone
}

// Options configures an Engine.
type Options struct {
	// Paragraphs is the number of paragraphs per frame. Values below 1 mean 1.
	Paragraphs int
	// OnFrameChanged runs inline on every frame transition, including the first frame
	// at Load. It must not block.
	OnFrameChanged func(FrameChange)
	// OnReveal runs inline whenever the revealed text changes.
	OnReveal func(Snapshot)
}

// Engine is the frame/character reveal state machine.
type Engine struct {
	logger logger.Logger
	opts   Options

	doc          *pager.Document
	state        State
	frame        pager.Frame
	revealed     int
	resumeCursor int
	pendingSkip  bool
}

// NewEngine creates an idle engine.
func NewEngine(log logger.Logger, opts Options) *Engine {
	if opts.Paragraphs < 1 {
		opts.Paragraphs = 1
	}
	return &Engine{logger: log, opts: opts, state: StateIdle}
}

// Load replaces the document and starts revealing its first non-empty frame.
// The first frame is reported before any tick.
func (e *Engine) Load(text string) {
	if e.state == StateClosed {
		return
	}

	e.doc = pager.NewDocument(text)
	e.revealed = 0
	e.resumeCursor = 0
	e.pendingSkip = false
	e.frame = e.doc.Frame(0, e.opts.Paragraphs)

	if e.frame.Empty() {
		e.state = StateFinished
		e.logger.Infof("Loaded document with no content (%d characters)", e.doc.Len())
		return
	}

	e.state = StateRevealing
	e.logger.Infof("Loaded document: %d characters", e.doc.Len())
	e.enterFrame()
}

// Tick advances the reveal by one step. It reports whether further ticks can change
// anything; false means the document is finished, closed or not loaded.
func (e *Engine) Tick() bool {
	switch e.state {
	case StateRevealing:
	case StateFrameDone, StateUserPaused:
		return true
	default:
		return false
	}

	if e.frame.Start+e.revealed >= e.doc.Len() {
		e.finish()
		return false
	}

	if e.frame.Empty() {
		e.frame = e.doc.Frame(e.frame.Start, e.opts.Paragraphs)
		e.revealed = 0
		e.pendingSkip = false
		if e.frame.Empty() {
			if e.frame.Start >= e.doc.Len() {
				e.finish()
				return false
			}
			return true
		}
		e.enterFrame()
	}

	if e.pendingSkip {
		e.pendingSkip = false
		e.revealed = e.frame.Len()
	} else {
		e.revealed++
	}
	e.render()

	if e.revealed >= e.frame.Len() {
		e.state = StateFrameDone
		e.resumeCursor = e.doc.SkipInline(e.frame.End)
		e.logger.Debugf("Frame [%d,%d) fully revealed", e.frame.Start, e.frame.End)
	}
	return true
}

// TogglePause pauses or resumes revealing. It never moves the frame or the reveal
// position. An auto-paused frame stays paused until Skip.
func (e *Engine) TogglePause() {
	switch e.state {
	case StateRevealing:
		e.state = StateUserPaused
	case StateUserPaused:
		e.state = StateRevealing
	}
}

// Skip either starts the next frame, when the current one is fully shown, or asks the
// next tick to reveal the rest of the current frame at once.
func (e *Engine) Skip() {
	switch e.state {
	case StateFrameDone:
		e.frame = pager.Frame{Start: e.resumeCursor, End: e.resumeCursor}
		e.revealed = 0
		e.pendingSkip = false
		e.state = StateRevealing
	case StateRevealing, StateUserPaused:
		e.pendingSkip = true
	}
}

// Close stops the engine for good and drops the document.
func (e *Engine) Close() {
	if e.state == StateClosed {
		return
	}
	e.state = StateClosed
	e.doc = nil
	e.frame = pager.Frame{}
	e.revealed = 0
	e.pendingSkip = false
	e.logger.Infof("Playback closed")
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Snapshot returns a copy of the observable state.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		State:        e.state,
		FrameStart:   e.frame.Start,
		FrameEnd:     e.frame.End,
		Revealed:     e.revealed,
		ResumeCursor: e.resumeCursor,
	}
	if e.doc != nil {
		s.DocumentLen = e.doc.Len()
		s.FrameText = e.doc.Text(e.frame)
		s.RevealedText = e.doc.Slice(e.frame.Start, e.frame.Start+e.revealed)
	}
	return s
}

func (e *Engine) enterFrame() {
	next := e.doc.Frame(e.frame.End, e.opts.Paragraphs)
	change := FrameChange{
		Start: e.frame.Start,
		End:   e.frame.End,
		Text:  e.doc.Text(e.frame),
		Next:  e.doc.Text(next),
	}
	e.logger.Debugf("Entering frame [%d,%d)", change.Start, change.End)
	if e.opts.OnFrameChanged != nil {
		e.opts.OnFrameChanged(change)
	}
}

func (e *Engine) render() {
	if e.opts.OnReveal != nil {
		e.opts.OnReveal(e.Snapshot())
	}
}

func (e *Engine) finish() {
	e.state = StateFinished
	e.logger.Infof("Reached end of document")
}
