package adapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	embedder := adapter.NewMock()

	v1, err := embedder.Embed(ctx, "buy milk")
	gt.NoError(t, err)
	v2, err := embedder.Embed(ctx, "buy milk")
	gt.NoError(t, err)
	gt.Equal(t, v1, v2)
	gt.Equal(t, len(v1), 384)

	v3, err := embedder.Embed(ctx, "walk the dog")
	gt.NoError(t, err)
	gt.V(t, v1).NotEqual(v3)
}

func TestMockEmbedderFailure(t *testing.T) {
	embedder := adapter.NewMock(adapter.WithMockFailure(errors.New("provider down")))

	_, err := embedder.Embed(context.Background(), "hello")
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindUnavailable)
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()

	inner := adapter.NewMock()
	cached, err := adapter.NewCachedEmbedder(inner, 128)
	gt.NoError(t, err)

	v1, err := cached.Embed(ctx, "buy milk")
	gt.NoError(t, err)
	cached.Wait()

	v2, err := cached.Embed(ctx, "buy milk")
	gt.NoError(t, err)
	gt.Equal(t, v1, v2)

	gt.Equal(t, cached.Model(), "mock-embedder")

	dim, err := cached.Dimension(ctx)
	gt.NoError(t, err)
	gt.Equal(t, dim, 384)
}
