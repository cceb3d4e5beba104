package prefetch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"manuscripta/internal/logger"
	"manuscripta/internal/models"
)

const defaultInboxSize = 64

// SceneFetcher resolves a chunk to an image URL.
type SceneFetcher interface {
	Fetch(ctx context.Context, chunk string) models.SceneResult
}

// ArtifactSource resolves an image URL to a decoded image, or nil.
type ArtifactSource interface {
	Get(ctx context.Context, url string) *models.Artifact
}

// Options tunes a Coordinator.
type Options struct {
	// MaxInFlight bounds concurrent scene fetches. Zero means unbounded.
	MaxInFlight int
	// RetryFailed releases a chunk's claim after a transport failure so a later
	// Enqueue of the same chunk tries again.
	RetryFailed bool
	// ReportImageFailures delivers a KindCache failure when the image behind a
	// successful scene cannot be downloaded or decoded. Otherwise it is only logged.
	ReportImageFailures bool
	// InboxSize is the event buffer size. Zero uses a default.
	InboxSize int
}

// Coordinator issues at most one background fetch per unique chunk per session and
// delivers the outcomes to a single consumer through Events.
type Coordinator struct {
	scenes    SceneFetcher
	artifacts ArtifactSource
	logger    logger.Logger
	opts      Options

	mu         sync.Mutex
	requested  *RequestedSet
	generation uint64

	sem       chan struct{}
	inbox     chan models.SceneEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Coordinator.
func New(scenes SceneFetcher, artifacts ArtifactSource, log logger.Logger, opts Options) *Coordinator {
	size := opts.InboxSize
	if size <= 0 {
		size = defaultInboxSize
	}
	c := &Coordinator{
		scenes:     scenes,
		artifacts:  artifacts,
		logger:     log,
		opts:       opts,
		requested:  NewRequestedSet(),
		generation: 1,
		inbox:      make(chan models.SceneEvent, size),
		done:       make(chan struct{}),
	}
	if opts.MaxInFlight > 0 {
		c.sem = make(chan struct{}, opts.MaxInFlight)
	}
	return c
}

// Events returns the single-consumer channel of fetch outcomes. It is never closed;
// stop reading after Close.
func (c *Coordinator) Events() <-chan models.SceneEvent {
	return c.inbox
}

// TryClaim records chunk for the current session and reports whether it was new.
func (c *Coordinator) TryClaim(chunk string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested.TryClaim(chunk)
}

// Forget releases chunk's claim so it can be requested again.
func (c *Coordinator) Forget(chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested.Forget(chunk)
}

// Generation returns the current session generation.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Reset starts a new session: every claim is dropped and results of earlier fetches
// carry a stale generation. It returns the new generation.
func (c *Coordinator) Reset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested.Reset()
	c.generation++
	return c.generation
}

// Enqueue claims chunk and, when the claim is new, fetches its scene in the
// background. It never blocks on the network and reports whether a fetch was issued.
func (c *Coordinator) Enqueue(chunk string) bool {
	if strings.TrimSpace(chunk) == "" || c.closed() {
		return false
	}

	c.mu.Lock()
	if !c.requested.TryClaim(chunk) {
		c.mu.Unlock()
		return false
	}
	gen := c.generation
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debugf("Prefetching scene for chunk %.40q", chunk)
	go c.fetch(gen, chunk)
	return true
}

func (c *Coordinator) fetch(gen uint64, chunk string) {
	defer c.wg.Done()

	if c.sem != nil {
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-c.done:
			return
		}
	}

	// In-flight fetches are not cancelled; late results are dropped at delivery.
	ctx := context.Background()

	res := c.scenes.Fetch(ctx, chunk)
	if res.Err != nil {
		if c.opts.RetryFailed && res.Err.Kind == models.KindTransport {
			c.release(gen, chunk)
		}
		c.deliver(models.SceneEvent{Failed: &models.SceneFailed{
			Generation: gen,
			Chunk:      chunk,
			RequestID:  res.RequestID,
			Err:        res.Err,
		}})
		return
	}

	art := c.artifacts.Get(ctx, res.ImageURL)
	if art == nil {
		c.logger.Warnf("Scene image %s for request %s could not be loaded", res.ImageURL, res.RequestID)
		if c.opts.ReportImageFailures {
			c.deliver(models.SceneEvent{Failed: &models.SceneFailed{
				Generation: gen,
				Chunk:      chunk,
				RequestID:  res.RequestID,
				Err: &models.SceneError{
					Kind:    models.KindCache,
					Message: fmt.Sprintf("scene image %s could not be loaded", res.ImageURL),
				},
			}})
		}
		return
	}

	c.deliver(models.SceneEvent{Ready: &models.ImageReady{
		Generation: gen,
		Chunk:      chunk,
		Artifact:   art,
	}})
}

// release forgets chunk if its session is still current.
func (c *Coordinator) release(gen uint64, chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.requested.Forget(chunk)
		c.logger.Debugf("Released claim on failed chunk %.40q", chunk)
	}
}

func (c *Coordinator) deliver(ev models.SceneEvent) {
	if c.closed() {
		c.logger.Debugf("Dropping scene result for closed session: %.40q", ev.Chunk())
		return
	}
	select {
	case c.inbox <- ev:
	case <-c.done:
		c.logger.Debugf("Dropping scene result for closed session: %.40q", ev.Chunk())
	}
}

func (c *Coordinator) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close stops delivery. Fetches already running finish and their results are dropped.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Wait blocks until every issued fetch has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
