package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/recall/pkg/model"
)

const retryBackoff = 200 * time.Millisecond

// withRetry runs fn and retries exactly once when it failed with a dependency
// outage. Only idempotent read-side index operations go through here (point
// lookup, scan, delete); writes, search and embed calls fail straight back to
// the caller.
func withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || model.Classify(err) != model.KindUnavailable {
		return err
	}

	select {
	case <-ctx.Done():
		return err
	case <-time.After(retryBackoff):
	}

	return fn()
}
