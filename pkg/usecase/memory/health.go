package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// healthMonitor probes the index and the embedding provider, caching the
// result briefly so a burst of requests does not turn into a burst of probes.
// Concurrent cache misses share one probe via singleflight.
type healthMonitor struct {
	index    repository.Index
	embedder adapter.Embedder
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu    sync.Mutex
	last  *model.Health
	group singleflight.Group
}

func newHealthMonitor(index repository.Index, embedder adapter.Embedder, ttl, timeout time.Duration, now func() time.Time) *healthMonitor {
	return &healthMonitor{
		index:    index,
		embedder: embedder,
		ttl:      ttl,
		timeout:  timeout,
		now:      now,
	}
}

// Check returns the current dependency health, probing only when the cached
// observation has expired
func (h *healthMonitor) Check(ctx context.Context) *model.Health {
	h.mu.Lock()
	if h.last != nil && h.now().Sub(h.last.CheckedAt) < h.ttl {
		cached := *h.last
		h.mu.Unlock()
		return &cached
	}
	h.mu.Unlock()

	result, _, _ := h.group.Do("probe", func() (any, error) {
		health := h.probe(ctx)
		h.mu.Lock()
		h.last = health
		h.mu.Unlock()
		return health, nil
	})

	health := *result.(*model.Health)
	return &health
}

// Invalidate drops the cached observation. Called after a dependency error so
// the next operation re-probes instead of trusting a stale healthy result.
func (h *healthMonitor) Invalidate() {
	h.mu.Lock()
	h.last = nil
	h.mu.Unlock()
}

func (h *healthMonitor) probe(ctx context.Context) *model.Health {
	probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var indexOK, embedderOK bool

	// Probes run concurrently and report through the flags; neither failure
	// cancels the other probe.
	eg := &errgroup.Group{}
	eg.Go(func() error {
		indexOK = h.index.Ping(probeCtx) == nil
		return nil
	})
	eg.Go(func() error {
		_, err := h.embedder.Dimension(probeCtx)
		embedderOK = err == nil
		return nil
	})
	_ = eg.Wait()

	return &model.Health{
		Mode:      model.ResolveMode(indexOK, embedderOK),
		Index:     indexOK,
		Embedder:  embedderOK,
		CheckedAt: h.now(),
	}
}
