package repository_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

func setupQdrant(t *testing.T, opts ...repository.QdrantOption) *repository.Qdrant {
	host := os.Getenv("TEST_QDRANT_HOST")
	if host == "" {
		t.Skip("TEST_QDRANT_HOST must be set to run Qdrant tests")
	}

	port := 6334
	if raw := os.Getenv("TEST_QDRANT_PORT"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		gt.NoError(t, err)
		port = parsed
	}

	collection := fmt.Sprintf("recall_test_%d", time.Now().UnixNano())
	index, err := repository.NewQdrant(host, port, collection, opts...)
	gt.NoError(t, err)

	t.Cleanup(func() {
		index.Close()
	})
	return index
}

func TestQdrantRoundTrip(t *testing.T) {
	index := setupQdrant(t)
	ctx := context.Background()

	gt.NoError(t, index.SetMeta(ctx, &model.IndexMeta{
		SchemaVersion: model.CurrentSchemaVersion,
		Model:         "test-model",
		Dimension:     4,
	}))

	now := time.Now().UTC().Truncate(time.Millisecond)
	mem := &model.Memory{
		ID:             model.NewMemoryID(),
		Text:           "buy milk",
		Tags:           []string{"errand"},
		Source:         "test",
		DedupeKey:      "todo:milk",
		Embedding:      []float32{1, 0, 0, 0},
		CreatedAt:      now,
		FirstCreatedAt: now,
	}
	gt.NoError(t, index.Upsert(ctx, mem))

	got, err := index.Get(ctx, mem.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Text, "buy milk")
	gt.Equal(t, got.Tags, []string{"errand"})
	gt.Equal(t, got.DedupeKey, "todo:milk")

	found, err := index.Lookup(ctx, "todo:milk")
	gt.NoError(t, err)
	gt.V(t, found).NotNil()
	gt.Equal(t, found.ID, mem.ID)

	results, err := index.Query(ctx, []float32{1, 0, 0, 0}, 5, nil)
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].Memory.ID, mem.ID)

	page, err := index.Scan(ctx, 10, nil)
	gt.NoError(t, err)
	gt.Equal(t, len(page), 1)

	gt.NoError(t, index.Delete(ctx, mem.ID))
	gt.NoError(t, index.Delete(ctx, mem.ID))

	_, err = index.Get(ctx, mem.ID)
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindNotFound)
}

func TestQdrantPendingWriteColdStart(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	pending := func() *model.Memory {
		return &model.Memory{
			ID:             model.NewMemoryID(),
			Text:           "buy milk",
			Source:         "test",
			PendingEmbed:   true,
			CreatedAt:      now,
			FirstCreatedAt: now,
		}
	}

	// without a configured dimension the failure names the embedder: the
	// vector size is what is missing, not the index
	bare := setupQdrant(t)
	err := bare.Upsert(ctx, pending())
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindUnavailable)
	gt.Equal(t, model.FailedDependency(err), model.DependencyEmbedder)

	// a configured dimension lets the first write create the collection
	sized := setupQdrant(t, repository.WithQdrantDimension(4))
	mem := pending()
	gt.NoError(t, sized.Upsert(ctx, mem))

	got, err := sized.Get(ctx, mem.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.PendingEmbed, true)
}

func TestQdrantMeta(t *testing.T) {
	index := setupQdrant(t)
	ctx := context.Background()

	meta, err := index.Meta(ctx)
	gt.NoError(t, err)
	gt.V(t, meta).Nil()

	gt.NoError(t, index.SetMeta(ctx, &model.IndexMeta{
		SchemaVersion: model.CurrentSchemaVersion,
		Model:         "test-model",
		Dimension:     4,
	}))

	meta, err = index.Meta(ctx)
	gt.NoError(t, err)
	gt.V(t, meta).NotNil()
	gt.Equal(t, meta.Model, "test-model")

	gt.NoError(t, index.Ping(ctx))
}
