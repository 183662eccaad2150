package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

// IngestFailure is one rejected item in a batch
type IngestFailure struct {
	Index int           `json:"index"`
	Kind  model.ErrKind `json:"kind"`
	Error string        `json:"error"`
}

// IngestOutput summarizes a batch store
type IngestOutput struct {
	Inserted    int             `json:"inserted"`
	Overwritten int             `json:"overwritten"`
	Failures    []IngestFailure `json:"failures,omitempty"`
}

// Ingest stores a batch of memories. Items are processed in order and one bad
// item does not abort the rest; its failure is reported per index. A
// dependency outage aborts the batch, since every following item would fail
// the same way.
func (u *UseCase) Ingest(ctx context.Context, items []StoreInput) (*IngestOutput, error) {
	if len(items) == 0 {
		return nil, goerr.New("batch must not be empty", goerr.T(model.TagValidation))
	}
	if len(items) > MaxBatchSize {
		return nil, goerr.New("batch exceeds maximum size",
			goerr.T(model.TagValidation),
			goerr.V("max", MaxBatchSize),
			goerr.V("count", len(items)))
	}

	out := &IngestOutput{}
	for i, item := range items {
		result, err := u.Store(ctx, item)
		if err != nil {
			if model.Classify(err) == model.KindUnavailable {
				return nil, goerr.Wrap(err, "batch aborted by dependency outage",
					goerr.V("index", i))
			}
			out.Failures = append(out.Failures, IngestFailure{
				Index: i,
				Kind:  model.Classify(err),
				Error: err.Error(),
			})
			continue
		}

		if result.Strategy == model.StrategyOverwritten {
			out.Overwritten++
		} else {
			out.Inserted++
		}
	}
	return out, nil
}
