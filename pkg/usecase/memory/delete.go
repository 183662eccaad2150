package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

// Delete removes a memory by ID. Deleting an ID that does not exist is a
// success: the caller wants the memory gone, and it is.
func (u *UseCase) Delete(ctx context.Context, id model.MemoryID) error {
	if id == "" {
		return goerr.New("memory id must not be empty", goerr.T(model.TagValidation))
	}

	err := withRetry(ctx, func() error {
		return u.index.Delete(ctx, id)
	})
	if err != nil {
		u.health.Invalidate()
		return err
	}
	return nil
}

// Get retrieves one memory by ID
func (u *UseCase) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	if id == "" {
		return nil, goerr.New("memory id must not be empty", goerr.T(model.TagValidation))
	}

	var mem *model.Memory
	err := withRetry(ctx, func() error {
		var getErr error
		mem, getErr = u.index.Get(ctx, id)
		return getErr
	})
	if err != nil {
		if model.Classify(err) == model.KindUnavailable {
			u.health.Invalidate()
		}
		return nil, err
	}
	return mem, nil
}
