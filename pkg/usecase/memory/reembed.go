package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

// Reembed fills in vectors for memories written while the embedding provider
// was down. It walks the full listing and re-embeds every pending memory, so
// it is meant to run once after the provider recovers, not on a hot path.
// Returns the number of memories embedded.
func (u *UseCase) Reembed(ctx context.Context) (int, error) {
	health := u.health.Check(ctx)
	if health.Mode != model.ModeFull {
		return 0, goerr.New("re-embedding requires both the index and the embedding provider",
			goerr.T(model.TagUnavailable),
			goerr.V("mode", health.Mode))
	}

	count := 0
	var after *repository.ScanKey
	for {
		page, err := u.index.Scan(ctx, exportPageSize, after)
		if err != nil {
			u.health.Invalidate()
			return count, err
		}
		if len(page) == 0 {
			break
		}

		for _, mem := range page {
			if !mem.PendingEmbed {
				continue
			}

			vector, err := u.embedder.Embed(ctx, mem.Text)
			if err != nil {
				u.health.Invalidate()
				return count, err
			}
			if err := u.ensureMeta(ctx, len(vector)); err != nil {
				return count, err
			}

			mem.Embedding = vector
			mem.PendingEmbed = false
			if err := u.upsert(ctx, mem); err != nil {
				return count, err
			}
			count++
		}

		last := page[len(page)-1]
		after = &repository.ScanKey{CreatedAt: last.CreatedAt, ID: last.ID}
		if len(page) < exportPageSize {
			break
		}
	}
	return count, nil
}
