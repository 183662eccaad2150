package adapter

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GeminiEmbedder generates embeddings via the Gemini API
type GeminiEmbedder struct {
	client *genai.Client
	model  string

	mu  sync.Mutex
	dim int
}

type GeminiOption func(*GeminiEmbedder)

// WithGeminiModel overrides the embedding model
func WithGeminiModel(model string) GeminiOption {
	return func(g *GeminiEmbedder) {
		g.model = model
	}
}

// NewGemini creates a Gemini embedding client backed by Vertex AI
func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiEmbedder{
		client: client,
		model:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, errEmbedderUnavailable(err, "gemini")
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errEmbedderUnavailable(goerr.New("empty embedding response"), "gemini")
	}

	vector := resp.Embeddings[0].Values

	g.mu.Lock()
	g.dim = len(vector)
	g.mu.Unlock()

	return vector, nil
}

func (g *GeminiEmbedder) Model() string {
	return g.model
}

func (g *GeminiEmbedder) Dimension(ctx context.Context) (int, error) {
	g.mu.Lock()
	dim := g.dim
	g.mu.Unlock()
	if dim > 0 {
		return dim, nil
	}

	vector, err := g.Embed(ctx, "probe")
	if err != nil {
		return 0, err
	}
	return len(vector), nil
}
