package api

import (
	"sync"

	"manuscripta/internal/models"
	"manuscripta/internal/playback"
)

// Display records what a reader would currently see. It is the session observer
// behind the HTTP surface and is safe for concurrent use.
type Display struct {
	mu       sync.RWMutex
	frame    playback.FrameChange
	revealed playback.Snapshot
	images   map[string]*models.Artifact
	latest   *models.Artifact
	lastErr  *models.SceneFailed
}

// NewDisplay creates an empty Display.
func NewDisplay() *Display {
	return &Display{images: make(map[string]*models.Artifact)}
}

// FrameChanged keeps only images for the new frame and the one after it.
func (d *Display) FrameChanged(fc playback.FrameChange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = fc
	for chunk := range d.images {
		if chunk != fc.Text && chunk != fc.Next {
			delete(d.images, chunk)
		}
	}
}

func (d *Display) Revealed(snap playback.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revealed = snap
}

func (d *Display) ImageReady(ev models.ImageReady) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latest = ev.Artifact
	if ev.Chunk == d.frame.Text || ev.Chunk == d.frame.Next {
		d.images[ev.Chunk] = ev.Artifact
	}
}

func (d *Display) SceneFailed(ev models.SceneFailed) {
	d.mu.Lock()
	defer d.mu.Unlock()
	evCopy := ev
	d.lastErr = &evCopy
}

// Frame returns the most recent frame change.
func (d *Display) Frame() playback.FrameChange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frame
}

// Image returns the image for the current frame, falling back to the most recently
// delivered one. It returns nil before any image arrived.
func (d *Display) Image() *models.Artifact {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if art, ok := d.images[d.frame.Text]; ok {
		return art
	}
	return d.latest
}

// LastError returns the most recent scene failure, or nil.
func (d *Display) LastError() *models.SceneFailed {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}
