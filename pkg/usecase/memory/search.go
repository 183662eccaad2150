package memory

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

// SearchInput is a similarity search request
type SearchInput struct {
	Query  string
	TopK   int
	Source string
	Tags   []string
}

// Search runs nearest-neighbor search over embedded memories. It requires
// the embedding provider: returning text-only matches while the provider is
// down would silently change what a search means, so the request fails
// instead.
func (u *UseCase) Search(ctx context.Context, input SearchInput) ([]*model.SearchResult, error) {
	if err := validateText(input.Query); err != nil {
		return nil, err
	}
	if input.TopK <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidTopK, "invalid top_k", goerr.V("top_k", input.TopK))
	}

	topK := input.TopK
	if topK > MaxTopK {
		topK = MaxTopK
	}

	health := u.health.Check(ctx)
	switch health.Mode {
	case model.ModeUnavailable:
		return nil, goerr.New("vector index is unavailable",
			goerr.T(model.TagUnavailable),
			goerr.V("dependency", model.DependencyIndex))
	case model.ModeDegraded:
		return nil, goerr.Wrap(model.ErrSearchDegraded, "cannot embed search query")
	}

	vector, err := u.embedder.Embed(ctx, input.Query)
	if err != nil {
		u.health.Invalidate()
		return nil, err
	}

	var filter *repository.Filter
	if input.Source != "" || len(input.Tags) > 0 {
		filter = &repository.Filter{Source: input.Source, Tags: input.Tags}
	}

	// search is never retried automatically; a transient index failure fails
	// the request
	results, err := u.index.Query(ctx, vector, topK, filter)
	if err != nil {
		u.health.Invalidate()
		return nil, err
	}

	// Backends order by similarity already; the tie-break on recency keeps
	// the order deterministic across backends.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
	})

	return results, nil
}
