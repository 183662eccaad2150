package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

// Embedder converts text into a fixed-dimension vector. Unavailability is a
// distinguishable failure: implementations never return zero vectors to
// paper over a dead provider.
type Embedder interface {
	// Embed converts a single text to an embedding vector
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the embedding model identifier
	Model() string

	// Dimension returns the vector size, probing the provider when it is
	// not known statically
	Dimension(ctx context.Context) (int, error)
}

// errEmbedderUnavailable wraps a provider failure so the engine can tell
// which dependency failed
func errEmbedderUnavailable(err error, provider string) error {
	return goerr.Wrap(err, "embedding provider request failed",
		goerr.T(model.TagUnavailable),
		goerr.V("dependency", model.DependencyEmbedder),
		goerr.V("provider", provider))
}
