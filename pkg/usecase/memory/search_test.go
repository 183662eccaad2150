package memory_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
)

func TestSearchFindsClosestMemory(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase()

	for _, text := range []string{"buy milk", "walk the dog", "review the quarterly report"} {
		_, err := uc.Store(ctx, memory.StoreInput{Text: text})
		gt.NoError(t, err)
	}

	// identical text embeds to the identical vector, so it must rank first
	results, err := uc.Search(ctx, memory.SearchInput{Query: "walk the dog", TopK: 3})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 3)
	gt.Equal(t, results[0].Memory.Text, "walk the dog")
	gt.V(t, results[0].Score > results[1].Score).Equal(true)
}

func TestSearchValidation(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase()

	_, err := uc.Search(ctx, memory.SearchInput{Query: "", TopK: 5})
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindValidation)

	_, err = uc.Search(ctx, memory.SearchInput{Query: "milk", TopK: 0})
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindValidation)

	_, err = uc.Search(ctx, memory.SearchInput{Query: "milk", TopK: -3})
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindValidation)
}

func TestSearchTopKClamp(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase()

	_, err := uc.Store(ctx, memory.StoreInput{Text: "buy milk"})
	gt.NoError(t, err)

	// an oversized top_k is clamped, not rejected
	results, err := uc.Search(ctx, memory.SearchInput{Query: "milk", TopK: 10000})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
}

func TestSearchFilter(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase()

	_, err := uc.Store(ctx, memory.StoreInput{Text: "buy milk", Source: "cli", Tags: []string{"errand"}})
	gt.NoError(t, err)
	_, err = uc.Store(ctx, memory.StoreInput{Text: "buy milk again", Source: "api", Tags: []string{"errand", "groceries"}})
	gt.NoError(t, err)

	results, err := uc.Search(ctx, memory.SearchInput{Query: "milk", TopK: 10, Source: "cli"})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].Memory.Source, "cli")

	results, err = uc.Search(ctx, memory.SearchInput{Query: "milk", TopK: 10, Tags: []string{"groceries"}})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].Memory.Source, "api")

	results, err = uc.Search(ctx, memory.SearchInput{Query: "milk", TopK: 10, Tags: []string{"nope"}})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 0)
}

func TestSearchDegraded(t *testing.T) {
	ctx := context.Background()
	embedder := &switchEmbedder{inner: adapter.NewMock()}
	uc := memory.New(repository.NewMemory(), embedder, memory.WithProbeTTL(0))

	_, err := uc.Store(ctx, memory.StoreInput{Text: "buy milk"})
	gt.NoError(t, err)

	embedder.setDown(true)

	_, err = uc.Search(ctx, memory.SearchInput{Query: "milk", TopK: 5})
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindUnavailable)
	gt.Equal(t, model.FailedDependency(err), model.DependencyEmbedder)
}

func TestSearchQueryNotRetried(t *testing.T) {
	ctx := context.Background()
	index := &faultyIndex{Index: repository.NewMemory(), failQueries: 1}
	uc := memory.New(index, adapter.NewMock(), memory.WithProbeTTL(0))

	_, err := uc.Store(ctx, memory.StoreInput{Text: "buy milk"})
	gt.NoError(t, err)

	// a transient query failure fails the request instead of being retried
	_, err = uc.Search(ctx, memory.SearchInput{Query: "milk", TopK: 5})
	gt.Error(t, err)
	gt.Equal(t, model.Classify(err), model.KindUnavailable)
	gt.Equal(t, index.queryCalls, 1)
}

func TestSearchSkipsPendingMemories(t *testing.T) {
	ctx := context.Background()
	embedder := &switchEmbedder{inner: adapter.NewMock()}
	uc := memory.New(repository.NewMemory(), embedder,
		memory.WithProbeTTL(0),
		memory.WithDegradedWrites())

	_, err := uc.Store(ctx, memory.StoreInput{Text: "buy milk"})
	gt.NoError(t, err)

	embedder.setDown(true)
	_, err = uc.Store(ctx, memory.StoreInput{Text: "walk the dog"})
	gt.NoError(t, err)
	embedder.setDown(false)

	results, err := uc.Search(ctx, memory.SearchInput{Query: "walk the dog", TopK: 10})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].Memory.Text, "buy milk")
}
