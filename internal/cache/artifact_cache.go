package cache

import (
	"context"
	"sync"

	"manuscripta/internal/logger"
	"manuscripta/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("manuscripta/internal/cache")

// Options tunes an ArtifactCache.
type Options struct {
	// Capacity bounds the number of cached images. Zero means unbounded.
	// When full, the oldest inserted entry is dropped.
	Capacity int
}

// ArtifactCache maps image URLs to decoded images. Concurrent Gets for the same
// uncached URL share one download; the map is the single source of truth for handles.
type ArtifactCache struct {
	mutex   sync.Mutex
	cache   map[string]*models.Artifact
	order   []string
	closed  bool
	group   singleflight.Group
	fetcher Fetcher
	logger  logger.Logger
	opts    Options
}

// New creates and returns a new ArtifactCache.
func New(fetcher Fetcher, log logger.Logger, opts Options) *ArtifactCache {
	return &ArtifactCache{
		cache:   make(map[string]*models.Artifact),
		fetcher: fetcher,
		logger:  log,
		opts:    opts,
	}
}

// Get returns the image for url, downloading and decoding it on first use.
// It returns nil when the download or decode fails; failures are not cached.
func (ac *ArtifactCache) Get(ctx context.Context, url string) *models.Artifact {
	ctx, span := tracer.Start(ctx, "ArtifactCache.Get",
		trace.WithAttributes(attribute.String("artifact.url", url)),
	)
	defer span.End()

	if a, found, closed := ac.lookup(url); closed {
		return nil
	} else if found {
		span.SetAttributes(attribute.Bool("artifact.hit", true))
		ac.logger.Debugf("Artifact cache hit: %s", url)
		return a
	}
	span.SetAttributes(attribute.Bool("artifact.hit", false))

	v, err, shared := ac.group.Do(url, func() (interface{}, error) {
		// A flight that finished between our lookup and Do has already committed.
		if a, found, _ := ac.lookup(url); found {
			return a, nil
		}
		a, err := ac.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		return ac.commit(url, a), nil
	})
	if err != nil {
		span.RecordError(err)
		ac.logger.Warnf("Artifact %s unavailable: %v", url, err)
		return nil
	}
	if shared {
		ac.logger.Debugf("Artifact %s shared with a concurrent request", url)
	}
	a, _ := v.(*models.Artifact)
	return a
}

// Peek returns a cached image without any I/O.
func (ac *ArtifactCache) Peek(url string) (*models.Artifact, bool) {
	a, found, _ := ac.lookup(url)
	return a, found
}

func (ac *ArtifactCache) lookup(url string) (*models.Artifact, bool, bool) {
	ac.mutex.Lock()
	defer ac.mutex.Unlock()
	a, found := ac.cache[url]
	return a, found, ac.closed
}

// commit stores a under url unless another entry won the race, in which case a is
// discarded and the stored entry returned. Nothing is stored after Close.
func (ac *ArtifactCache) commit(url string, a *models.Artifact) *models.Artifact {
	ac.mutex.Lock()
	defer ac.mutex.Unlock()

	if ac.closed {
		return nil
	}
	if existing, found := ac.cache[url]; found {
		ac.logger.Debugf("Discarding duplicate decode of %s", url)
		return existing
	}

	ac.cache[url] = a
	ac.order = append(ac.order, url)
	ac.evictLocked()
	ac.logger.Debugf("Cached artifact %s, entries: %d", a, len(ac.cache))
	return a
}

func (ac *ArtifactCache) evictLocked() {
	if ac.opts.Capacity <= 0 {
		return
	}
	for len(ac.cache) > ac.opts.Capacity && len(ac.order) > 0 {
		oldest := ac.order[0]
		ac.order = ac.order[1:]
		delete(ac.cache, oldest)
		ac.logger.Debugf("Evicted artifact %s", oldest)
	}
}

// Len returns the number of cached images.
func (ac *ArtifactCache) Len() int {
	ac.mutex.Lock()
	defer ac.mutex.Unlock()
	return len(ac.cache)
}

// Close releases every cached image. Later Gets return nil.
func (ac *ArtifactCache) Close() {
	ac.mutex.Lock()
	defer ac.mutex.Unlock()
	ac.logger.Infof("Releasing %d cached artifacts", len(ac.cache))
	ac.cache = make(map[string]*models.Artifact)
	ac.order = nil
	ac.closed = true
}
