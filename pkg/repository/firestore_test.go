package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	collection := fmt.Sprintf("recall_test_%d", time.Now().UnixNano())
	index, err := repository.NewFirestore(context.Background(), projectID, databaseID, collection)
	gt.NoError(t, err)

	t.Cleanup(func() {
		index.Close()
	})
	return index
}

func TestFirestoreRoundTrip(t *testing.T) {
	index := setupFirestore(t)
	ctx := context.Background()

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
	gt.Equal(t, got.DedupeKey, "todo:milk")

	found, err := index.Lookup(ctx, "todo:milk")
	gt.NoError(t, err)
	gt.V(t, found).NotNil()
	gt.Equal(t, found.ID, mem.ID)

	missing, err := index.Lookup(ctx, "todo:bread")
	gt.NoError(t, err)
	gt.V(t, missing).Nil()

	gt.NoError(t, index.Delete(ctx, mem.ID))
	gt.NoError(t, index.Delete(ctx, mem.ID))

	_, err = index.Get(ctx, mem.ID)
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindNotFound)
}

func TestFirestoreMeta(t *testing.T) {
	index := setupFirestore(t)
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
