package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger is a no-op logger for testing purposes.
type mockLogger struct{}

func (m *mockLogger) Debugf(format string, v ...interface{}) {}
func (m *mockLogger) Infof(format string, v ...interface{})  {}
func (m *mockLogger) Warnf(format string, v ...interface{})  {}
func (m *mockLogger) Errorf(format string, v ...interface{}) {}

const threeParagraphs = "Hello world.\n\nSecond part.\n\nThird."

type recorder struct {
	frames  []FrameChange
	reveals []string
}

func newEngine(paragraphs int) (*Engine, *recorder) {
	rec := &recorder{}
	e := NewEngine(&mockLogger{}, Options{
		Paragraphs:     paragraphs,
		OnFrameChanged: func(fc FrameChange) { rec.frames = append(rec.frames, fc) },
		OnReveal:       func(s Snapshot) { rec.reveals = append(rec.reveals, s.RevealedText) },
	})
	return e, rec
}

func tickN(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.Tick()
	}
}

func TestEngine_FirstFrameRevealedOnePerTick(t *testing.T) {
	e, rec := newEngine(1)
	e.Load(threeParagraphs)

	require.Len(t, rec.frames, 1, "first frame is announced before any tick")
	assert.Equal(t, "Hello world.", rec.frames[0].Text)
	assert.Equal(t, "Second part.", rec.frames[0].Next)
	assert.Equal(t, StateRevealing, e.State())
	assert.Empty(t, e.Snapshot().RevealedText)

	want := "Hello world."
	for i := 1; i <= len(want); i++ {
		require.True(t, e.Tick())
		assert.Equal(t, want[:i], e.Snapshot().RevealedText)
	}

	assert.Equal(t, StateFrameDone, e.State())
	assert.True(t, e.Snapshot().Paused())
	assert.Len(t, rec.reveals, len(want))
	assert.Len(t, rec.frames, 1)

	tickN(e, 5)
	assert.Equal(t, want, e.Snapshot().RevealedText, "auto pause holds the frame")
	assert.Len(t, rec.reveals, len(want))
}

func TestEngine_SkipCompletesFrameInOneTick(t *testing.T) {
	e, rec := newEngine(1)
	e.Load(threeParagraphs)
	tickN(e, 3)
	require.Equal(t, "Hel", e.Snapshot().RevealedText)

	e.Skip()
	assert.Equal(t, "Hel", e.Snapshot().RevealedText, "skip waits for the next tick")

	require.True(t, e.Tick())
	assert.Equal(t, "Hello world.", e.Snapshot().RevealedText)
	assert.Equal(t, StateFrameDone, e.State())
	assert.Len(t, rec.frames, 1)
}

func TestEngine_SkipAdvancesToNextFrame(t *testing.T) {
	e, rec := newEngine(1)
	e.Load(threeParagraphs)
	tickN(e, 12)
	require.Equal(t, StateFrameDone, e.State())

	e.Skip()
	assert.Equal(t, StateRevealing, e.State())
	assert.Len(t, rec.frames, 1, "next frame is computed on the following tick")

	require.True(t, e.Tick())
	require.Len(t, rec.frames, 2)
	assert.Equal(t, "Second part.", rec.frames[1].Text)
	assert.Equal(t, "Third.", rec.frames[1].Next)
	assert.Equal(t, "S", e.Snapshot().RevealedText)

	tickN(e, 11)
	assert.Equal(t, "Second part.", e.Snapshot().RevealedText)
	assert.Equal(t, StateFrameDone, e.State())

	e.Skip()
	e.Tick()
	require.Len(t, rec.frames, 3)
	assert.Equal(t, "Third.", rec.frames[2].Text)
	assert.Empty(t, rec.frames[2].Next)

	tickN(e, 5)
	assert.Equal(t, "Third.", e.Snapshot().RevealedText)
	assert.Equal(t, StateFrameDone, e.State())

	e.Skip()
	assert.False(t, e.Tick())
	assert.Equal(t, StateFinished, e.State())
	assert.False(t, e.Tick(), "ticks after the end are no-ops")
	assert.Len(t, rec.frames, 3)
}

func TestEngine_TogglePause(t *testing.T) {
	e, rec := newEngine(1)
	e.Load(threeParagraphs)
	tickN(e, 4)

	e.TogglePause()
	assert.Equal(t, StateUserPaused, e.State())
	before := e.Snapshot()

	tickN(e, 10)
	assert.Equal(t, before, e.Snapshot(), "paused ticks change nothing")

	e.TogglePause()
	assert.Equal(t, StateRevealing, e.State())
	e.Tick()
	assert.Equal(t, "Hello", e.Snapshot().RevealedText)
	assert.Len(t, rec.frames, 1)
}

func TestEngine_SkipWhileUserPaused(t *testing.T) {
	e, _ := newEngine(1)
	e.Load(threeParagraphs)
	tickN(e, 2)

	e.TogglePause()
	e.Skip()
	e.Tick()
	assert.Equal(t, "He", e.Snapshot().RevealedText)

	e.TogglePause()
	e.Tick()
	assert.Equal(t, "Hello world.", e.Snapshot().RevealedText)
	assert.Equal(t, StateFrameDone, e.State())
}

func TestEngine_ToggleIgnoredWhenFrameDone(t *testing.T) {
	e, _ := newEngine(1)
	e.Load(threeParagraphs)
	tickN(e, 12)

	e.TogglePause()
	assert.Equal(t, StateFrameDone, e.State())
}

func TestEngine_MultiParagraphFrames(t *testing.T) {
	e, rec := newEngine(2)
	e.Load(threeParagraphs)

	require.Len(t, rec.frames, 1)
	assert.Equal(t, "Hello world.\n\nSecond part.", rec.frames[0].Text)
	assert.Equal(t, "Third.", rec.frames[0].Next)
}

func TestEngine_BlankLinesBetweenFrames(t *testing.T) {
	e, rec := newEngine(1)
	e.Load("\n\n  One.\n\n\n\n\n\nTwo.")

	require.Len(t, rec.frames, 1)
	assert.Equal(t, "One.", rec.frames[0].Text)
	assert.Equal(t, "Two.", rec.frames[0].Next)

	tickN(e, 4)
	e.Skip()
	e.Tick()
	require.Len(t, rec.frames, 2)
	assert.Equal(t, "Two.", rec.frames[1].Text)
}

func TestEngine_EmptyDocument(t *testing.T) {
	for _, text := range []string{"", "\n\n  \r\n"} {
		e, rec := newEngine(1)
		e.Load(text)
		assert.Equal(t, StateFinished, e.State())
		assert.Empty(t, rec.frames)
		assert.False(t, e.Tick())
	}
}

func TestEngine_LoadReplacesDocument(t *testing.T) {
	e, rec := newEngine(1)
	e.Load(threeParagraphs)
	tickN(e, 5)
	e.Skip()

	e.Load("Another story.")
	require.Len(t, rec.frames, 2)
	assert.Equal(t, "Another story.", rec.frames[1].Text)
	assert.Empty(t, e.Snapshot().RevealedText)

	e.Tick()
	assert.Equal(t, "A", e.Snapshot().RevealedText, "pending skip does not survive a reload")
}

func TestEngine_Close(t *testing.T) {
	e, rec := newEngine(1)
	e.Load(threeParagraphs)
	tickN(e, 3)

	e.Close()
	assert.Equal(t, StateClosed, e.State())
	assert.False(t, e.Tick())

	e.Skip()
	e.TogglePause()
	e.Load("ignored")
	assert.Equal(t, StateClosed, e.State())
	assert.Len(t, rec.frames, 1)
	assert.Empty(t, e.Snapshot().RevealedText)
}

func TestEngine_IdleBeforeLoad(t *testing.T) {
	e, _ := newEngine(1)
	assert.Equal(t, StateIdle, e.State())
	assert.False(t, e.Tick())
	e.Skip()
	e.TogglePause()
	assert.Equal(t, StateIdle, e.State())
}

func TestEngine_UnicodeRevealsRunes(t *testing.T) {
	e, _ := newEngine(1)
	e.Load("Привет")
	e.Tick()
	e.Tick()
	assert.Equal(t, "Пр", e.Snapshot().RevealedText)
}
