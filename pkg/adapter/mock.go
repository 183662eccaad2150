package adapter

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder generates deterministic embeddings from a text hash. Identical
// texts always map to identical vectors, which is enough for dedupe and
// similarity tests without a live provider.
type MockEmbedder struct {
	dim  int
	fail error
}

type MockOption func(*MockEmbedder)

// WithMockFailure makes every call fail with err, simulating a dead provider
func WithMockFailure(err error) MockOption {
	return func(m *MockEmbedder) {
		m.fail = err
	}
}

// WithMockDimension overrides the vector size
func WithMockDimension(dim int) MockOption {
	return func(m *MockEmbedder) {
		m.dim = dim
	}
}

// NewMock creates a deterministic embedder for tests and offline use
func NewMock(opts ...MockOption) *MockEmbedder {
	m := &MockEmbedder{dim: 384}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.fail != nil {
		return nil, errEmbedderUnavailable(m.fail, "mock")
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vector := make([]float32, m.dim)
	for i := range vector {
		seed = seed*6364136223846793005 + 1442695040888963407
		vector[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(vector), nil
}

func (m *MockEmbedder) Model() string {
	return "mock-embedder"
}

func (m *MockEmbedder) Dimension(ctx context.Context) (int, error) {
	if m.fail != nil {
		return 0, errEmbedderUnavailable(m.fail, "mock")
	}
	return m.dim, nil
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
