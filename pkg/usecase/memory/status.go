package memory

import (
	"context"

	"github.com/m-mizutani/recall/pkg/model"
)

// Health reports the current operating mode from cached or fresh dependency
// probes
func (u *UseCase) Health(ctx context.Context) *model.Health {
	return u.health.Check(ctx)
}

// Meta returns the embedding model fingerprint stored in the index, or nil
// when nothing has been written yet
func (u *UseCase) Meta(ctx context.Context) (*model.IndexMeta, error) {
	return u.index.Meta(ctx)
}
