package memory

import (
	"context"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

// ListInput is a pagination request over the recency-ordered memory listing
type ListInput struct {
	Limit  int
	Cursor string
}

// ListOutput is one page plus the cursor for the next one. NextCursor is
// empty on the last page.
type ListOutput struct {
	Memories   []*model.Memory
	NextCursor string
}

// List pages through all memories in (CreatedAt desc, ID desc) order. The
// cursor encodes the last row of the page, so a page boundary never skips or
// repeats rows even when timestamps collide.
func (u *UseCase) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var after *repository.ScanKey
	if input.Cursor != "" {
		key, err := u.cursor.Decode(input.Cursor)
		if err != nil {
			return nil, err
		}
		after = key
	}

	// Fetch one extra row to learn whether another page exists without a
	// second round trip.
	var page []*model.Memory
	err := withRetry(ctx, func() error {
		var scanErr error
		page, scanErr = u.index.Scan(ctx, limit+1, after)
		return scanErr
	})
	if err != nil {
		u.health.Invalidate()
		return nil, err
	}

	out := &ListOutput{Memories: page}
	if len(page) > limit {
		out.Memories = page[:limit]
		last := out.Memories[limit-1]
		out.NextCursor = u.cursor.Encode(repository.ScanKey{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return out, nil
}
