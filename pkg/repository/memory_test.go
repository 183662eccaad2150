package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

func unitVector(dim, hot int) []float32 {
	vec := make([]float32, dim)
	vec[hot] = 1.0
	return vec
}

func newMemory(id string, createdAt time.Time) *model.Memory {
	return &model.Memory{
		ID:             model.MemoryID(id),
		Text:           "memory " + id,
		Embedding:      unitVector(4, 0),
		CreatedAt:      createdAt,
		FirstCreatedAt: createdAt,
	}
}

func TestMemoryIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	index := repository.NewMemory()

	now := time.Now().UTC()
	mem := newMemory("a", now)
	mem.Tags = []string{"errand"}
	mem.DedupeKey = "todo:milk"

	gt.NoError(t, index.Upsert(ctx, mem))

	got, err := index.Get(ctx, mem.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Text, mem.Text)
	gt.Equal(t, got.Tags, []string{"errand"})

	// mutating a returned memory must not leak into the store
	got.Text = "mutated"
	again, err := index.Get(ctx, mem.ID)
	gt.NoError(t, err)
	gt.Equal(t, again.Text, mem.Text)

	_, err = index.Get(ctx, model.MemoryID("unknown"))
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindNotFound)
}

func TestMemoryIndexLookup(t *testing.T) {
	ctx := context.Background()
	index := repository.NewMemory()

	mem := newMemory("a", time.Now().UTC())
	mem.DedupeKey = "todo:milk"
	gt.NoError(t, index.Upsert(ctx, mem))

	found, err := index.Lookup(ctx, "todo:milk")
	gt.NoError(t, err)
	gt.V(t, found).NotNil()
	gt.Equal(t, found.ID, mem.ID)

	missing, err := index.Lookup(ctx, "todo:bread")
	gt.NoError(t, err)
	gt.V(t, missing).Nil()
}

func TestMemoryIndexQuery(t *testing.T) {
	ctx := context.Background()
	index := repository.NewMemory()
	now := time.Now().UTC()

	near := newMemory("near", now)
	near.Embedding = []float32{1, 0, 0, 0}
	far := newMemory("far", now)
	far.Embedding = []float32{0, 1, 0, 0}
	pending := newMemory("pending", now)
	pending.Embedding = nil
	pending.PendingEmbed = true

	for _, mem := range []*model.Memory{near, far, pending} {
		gt.NoError(t, index.Upsert(ctx, mem))
	}

	results, err := index.Query(ctx, []float32{1, 0, 0, 0}, 10, nil)
	gt.NoError(t, err)

	// pending memories never appear in similarity results
	gt.Equal(t, len(results), 2)
	gt.Equal(t, results[0].Memory.ID, near.ID)
	gt.V(t, results[0].Score > results[1].Score).Equal(true)

	// limit applies after ordering
	results, err = index.Query(ctx, []float32{1, 0, 0, 0}, 1, nil)
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].Memory.ID, near.ID)
}

func TestMemoryIndexQueryFilter(t *testing.T) {
	ctx := context.Background()
	index := repository.NewMemory()
	now := time.Now().UTC()

	a := newMemory("a", now)
	a.Source = "cli"
	a.Tags = []string{"errand", "groceries"}
	b := newMemory("b", now)
	b.Source = "api"
	b.Tags = []string{"errand"}

	gt.NoError(t, index.Upsert(ctx, a))
	gt.NoError(t, index.Upsert(ctx, b))

	results, err := index.Query(ctx, unitVector(4, 0), 10, &repository.Filter{Source: "cli"})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].Memory.ID, a.ID)

	// all tags must match
	results, err = index.Query(ctx, unitVector(4, 0), 10,
		&repository.Filter{Tags: []string{"errand", "groceries"}})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].Memory.ID, a.ID)

	results, err = index.Query(ctx, unitVector(4, 0), 10,
		&repository.Filter{Tags: []string{"errand"}})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 2)
}

func TestMemoryIndexScanOrder(t *testing.T) {
	ctx := context.Background()
	index := repository.NewMemory()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		mem := newMemory(fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Minute))
		gt.NoError(t, index.Upsert(ctx, mem))
	}

	page, err := index.Scan(ctx, 3, nil)
	gt.NoError(t, err)
	gt.Equal(t, len(page), 3)
	gt.Equal(t, page[0].ID, model.MemoryID("m4"))
	gt.Equal(t, page[1].ID, model.MemoryID("m3"))

	last := page[2]
	rest, err := index.Scan(ctx, 10, &repository.ScanKey{CreatedAt: last.CreatedAt, ID: last.ID})
	gt.NoError(t, err)
	gt.Equal(t, len(rest), 2)
	gt.Equal(t, rest[0].ID, model.MemoryID("m1"))
	gt.Equal(t, rest[1].ID, model.MemoryID("m0"))
}

func TestMemoryIndexScanTieBreak(t *testing.T) {
	ctx := context.Background()
	index := repository.NewMemory()
	frozen := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c", "d"} {
		gt.NoError(t, index.Upsert(ctx, newMemory(id, frozen)))
	}

	// identical timestamps: ID desc keeps the order total
	page, err := index.Scan(ctx, 2, nil)
	gt.NoError(t, err)
	gt.Equal(t, page[0].ID, model.MemoryID("d"))
	gt.Equal(t, page[1].ID, model.MemoryID("c"))

	last := page[1]
	rest, err := index.Scan(ctx, 10, &repository.ScanKey{CreatedAt: last.CreatedAt, ID: last.ID})
	gt.NoError(t, err)
	gt.Equal(t, len(rest), 2)
	gt.Equal(t, rest[0].ID, model.MemoryID("b"))
	gt.Equal(t, rest[1].ID, model.MemoryID("a"))
}

func TestMemoryIndexDelete(t *testing.T) {
	ctx := context.Background()
	index := repository.NewMemory()

	mem := newMemory("a", time.Now().UTC())
	gt.NoError(t, index.Upsert(ctx, mem))
	gt.NoError(t, index.Delete(ctx, mem.ID))
	gt.Equal(t, index.Count(), 0)

	// deleting an unknown ID is a no-op success
	gt.NoError(t, index.Delete(ctx, mem.ID))
}

func TestMemoryIndexMeta(t *testing.T) {
	ctx := context.Background()
	index := repository.NewMemory()

	meta, err := index.Meta(ctx)
	gt.NoError(t, err)
	gt.V(t, meta).Nil()

	gt.NoError(t, index.SetMeta(ctx, &model.IndexMeta{
		SchemaVersion: model.CurrentSchemaVersion,
		Model:         "mock-embedder",
		Dimension:     4,
	}))

	meta, err = index.Meta(ctx)
	gt.NoError(t, err)
	gt.V(t, meta).NotNil()
	gt.Equal(t, meta.Model, "mock-embedder")
	gt.Equal(t, meta.Dimension, 4)
}
