package memory_test

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
)

// faultyIndex wraps the in-process index with injectable outages
type faultyIndex struct {
	repository.Index

	mu          sync.Mutex
	down        bool
	failUpserts int
	upsertCalls int
	failQueries int
	queryCalls  int
}

func errIndexDown() error {
	return goerr.New("index down",
		goerr.T(model.TagUnavailable),
		goerr.V("dependency", model.DependencyIndex))
}

func (x *faultyIndex) Upsert(ctx context.Context, mem *model.Memory) error {
	x.mu.Lock()
	x.upsertCalls++
	if x.down {
		x.mu.Unlock()
		return errIndexDown()
	}
	if x.failUpserts > 0 {
		x.failUpserts--
		x.mu.Unlock()
		return errIndexDown()
	}
	x.mu.Unlock()
	return x.Index.Upsert(ctx, mem)
}

func (x *faultyIndex) Query(ctx context.Context, vector []float32, limit int, filter *repository.Filter) ([]*model.SearchResult, error) {
	x.mu.Lock()
	x.queryCalls++
	if x.down {
		x.mu.Unlock()
		return nil, errIndexDown()
	}
	if x.failQueries > 0 {
		x.failQueries--
		x.mu.Unlock()
		return nil, errIndexDown()
	}
	x.mu.Unlock()
	return x.Index.Query(ctx, vector, limit, filter)
}

func (x *faultyIndex) Ping(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.down {
		return errIndexDown()
	}
	return nil
}

func (x *faultyIndex) setDown(down bool) {
	x.mu.Lock()
	x.down = down
	x.mu.Unlock()
}

// switchEmbedder lets a test take the embedding provider down and up
type switchEmbedder struct {
	inner adapter.Embedder

	mu   sync.Mutex
	down bool
}

func (e *switchEmbedder) fail() error {
	return goerr.New("embedder down",
		goerr.T(model.TagUnavailable),
		goerr.V("dependency", model.DependencyEmbedder))
}

func (e *switchEmbedder) isDown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.down
}

func (e *switchEmbedder) setDown(down bool) {
	e.mu.Lock()
	e.down = down
	e.mu.Unlock()
}

func (e *switchEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.isDown() {
		return nil, e.fail()
	}
	return e.inner.Embed(ctx, text)
}

func (e *switchEmbedder) Model() string {
	return e.inner.Model()
}

func (e *switchEmbedder) Dimension(ctx context.Context) (int, error) {
	if e.isDown() {
		return 0, e.fail()
	}
	return e.inner.Dimension(ctx)
}

// testClock hands out strictly increasing timestamps so listing order is
// deterministic
type testClock struct {
	mu   sync.Mutex
	last time.Time
}

func newTestClock() *testClock {
	return &testClock{last: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.last.Add(time.Second)
	return c.last
}

func newTestUseCase(opts ...memory.Option) (*memory.UseCase, *repository.Memory) {
	index := repository.NewMemory()
	base := []memory.Option{
		memory.WithProbeTTL(0),
		memory.WithClock(newTestClock().Now),
	}
	uc := memory.New(index, adapter.NewMock(), append(base, opts...)...)
	return uc, index
}
