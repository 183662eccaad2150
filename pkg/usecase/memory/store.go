package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

// StoreInput is one memory to persist
type StoreInput struct {
	Text       string
	Tags       []string
	Source     string
	DedupeKey  string
	ExternalID string
}

// StoreOutput reports the persisted memory and whether the write inserted a
// new memory or overwrote an existing one via its dedupe key
type StoreOutput struct {
	Memory   *model.Memory
	Strategy model.StoreStrategy
}

// Store persists a memory. With a dedupe key, at most one live memory holds
// that key: a second store updates the first in place, keeping its ID and
// FirstCreatedAt. Stores for the same key are serialized so concurrent
// writers cannot race into duplicates.
func (u *UseCase) Store(ctx context.Context, input StoreInput) (*StoreOutput, error) {
	if err := validateText(input.Text); err != nil {
		return nil, err
	}
	if err := validateTags(input.Tags); err != nil {
		return nil, err
	}
	if err := validateSource(input.Source); err != nil {
		return nil, err
	}

	health := u.health.Check(ctx)
	if health.Mode == model.ModeUnavailable {
		return nil, goerr.New("vector index is unavailable",
			goerr.T(model.TagUnavailable),
			goerr.V("dependency", model.DependencyIndex))
	}

	vector, pending, err := u.embedForStore(ctx, input.Text, health.Mode)
	if err != nil {
		return nil, err
	}

	if err := u.ensureMeta(ctx, len(vector)); err != nil {
		return nil, err
	}

	if input.DedupeKey == "" {
		return u.storeNew(ctx, input, vector, pending)
	}
	return u.storeDeduped(ctx, input, vector, pending)
}

// embedForStore returns the embedding vector, or pending=true for a
// payload-only write while the provider is down and degraded writes are
// allowed
func (u *UseCase) embedForStore(ctx context.Context, text string, mode model.Mode) ([]float32, bool, error) {
	degradedErr := goerr.New("embedding provider is unavailable and degraded writes are disabled",
		goerr.T(model.TagUnavailable),
		goerr.V("dependency", model.DependencyEmbedder))

	if mode == model.ModeDegraded {
		if !u.allowDegradedWrites {
			return nil, false, degradedErr
		}
		return nil, true, nil
	}

	vector, err := u.embedder.Embed(ctx, text)
	if err != nil {
		// The probe said healthy but the real call failed; drop the cached
		// observation so the next request re-probes.
		u.health.Invalidate()
		if u.allowDegradedWrites {
			return nil, true, nil
		}
		return nil, false, err
	}
	return vector, false, nil
}

func (u *UseCase) storeNew(ctx context.Context, input StoreInput, vector []float32, pending bool) (*StoreOutput, error) {
	now := u.now().UTC()
	mem := &model.Memory{
		ID:             model.NewMemoryID(),
		Text:           input.Text,
		Tags:           input.Tags,
		Source:         input.Source,
		ExternalID:     input.ExternalID,
		Embedding:      vector,
		PendingEmbed:   pending,
		CreatedAt:      now,
		FirstCreatedAt: now,
	}

	if err := u.upsert(ctx, mem); err != nil {
		return nil, err
	}
	return &StoreOutput{Memory: mem, Strategy: model.StrategyInserted}, nil
}

func (u *UseCase) storeDeduped(ctx context.Context, input StoreInput, vector []float32, pending bool) (*StoreOutput, error) {
	unlock := u.locks.Lock(input.DedupeKey)
	defer unlock()

	var existing *model.Memory
	err := withRetry(ctx, func() error {
		var lookupErr error
		existing, lookupErr = u.index.Lookup(ctx, input.DedupeKey)
		return lookupErr
	})
	if err != nil {
		u.health.Invalidate()
		return nil, err
	}

	now := u.now().UTC()
	mem := &model.Memory{
		Text:         input.Text,
		Tags:         input.Tags,
		Source:       input.Source,
		DedupeKey:    input.DedupeKey,
		ExternalID:   input.ExternalID,
		Embedding:    vector,
		PendingEmbed: pending,
		CreatedAt:    now,
	}

	strategy := model.StrategyInserted
	if existing != nil {
		// Update in place: the ID and the first write timestamp belong to the
		// first store of this key.
		mem.ID = existing.ID
		mem.FirstCreatedAt = existing.FirstCreatedAt
		strategy = model.StrategyOverwritten
	} else {
		// The ID is derived from the key, so two inserts racing past an empty
		// lookup still land on the same point.
		mem.ID = model.DedupeMemoryID(input.DedupeKey)
		mem.FirstCreatedAt = now
	}

	if err := u.upsert(ctx, mem); err != nil {
		return nil, err
	}
	return &StoreOutput{Memory: mem, Strategy: strategy}, nil
}

// upsert writes a memory. Writes are never retried automatically; a transient
// failure surfaces to the caller, and overwrite correctness rests on the
// dedupe key rather than retry suppression.
func (u *UseCase) upsert(ctx context.Context, mem *model.Memory) error {
	if err := u.index.Upsert(ctx, mem); err != nil {
		u.health.Invalidate()
		return err
	}
	return nil
}

// ensureMeta pins the embedding model fingerprint on first write and rejects
// writes against an index built with a different model. A payload-only write
// (dimension 0) leaves the fingerprint for the first embedded write.
func (u *UseCase) ensureMeta(ctx context.Context, dimension int) error {
	meta, err := u.index.Meta(ctx)
	if err != nil {
		u.health.Invalidate()
		return err
	}

	if meta == nil {
		if dimension == 0 {
			return nil
		}
		return u.index.SetMeta(ctx, &model.IndexMeta{
			SchemaVersion: model.CurrentSchemaVersion,
			Model:         u.embedder.Model(),
			Dimension:     dimension,
		})
	}

	if meta.Model != u.embedder.Model() {
		return goerr.Wrap(model.ErrModelMismatch, "index was built with a different embedding model",
			goerr.V("index_model", meta.Model),
			goerr.V("configured_model", u.embedder.Model()))
	}
	if dimension > 0 && meta.Dimension != dimension {
		return goerr.Wrap(model.ErrModelMismatch, "embedding dimension changed",
			goerr.V("index_dimension", meta.Dimension),
			goerr.V("vector_dimension", dimension))
	}
	return nil
}
