package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultEmbedPath  = "/api/embed"
	fallbackEmbedPath = "/api/embeddings"
)

// OllamaEmbedder generates embeddings via a local Ollama instance. Newer
// Ollama versions expose /api/embed, older ones /api/embeddings with a
// slightly different response shape; the working path is detected on first
// use and cached.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client

	mu          sync.Mutex
	workingPath string
	dim         int
}

type OllamaOption func(*OllamaEmbedder)

// WithOllamaHTTPClient overrides the HTTP client, mainly for tests
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(o *OllamaEmbedder) {
		o.client = client
	}
}

// NewOllama creates an Ollama embedding client
func NewOllama(baseURL, embedModel string, opts ...OllamaOption) *OllamaEmbedder {
	o := &OllamaEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   embedModel,
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	// /api/embed returns Embeddings, the legacy /api/embeddings returns
	// Embedding
	Embeddings [][]float32 `json:"embeddings"`
	Embedding  []float32   `json:"embedding"`
}

func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	o.mu.Lock()
	path := o.workingPath
	o.mu.Unlock()

	if path != "" {
		return o.embedPath(ctx, path, text)
	}

	var lastErr error
	for _, candidate := range []string{defaultEmbedPath, fallbackEmbedPath} {
		vector, err := o.embedPath(ctx, candidate, text)
		if err != nil {
			lastErr = err
			continue
		}
		o.mu.Lock()
		o.workingPath = candidate
		o.mu.Unlock()
		return vector, nil
	}
	return nil, lastErr
}

func (o *OllamaEmbedder) embedPath(ctx context.Context, path, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build embed request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errEmbedderUnavailable(err, "ollama")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errEmbedderUnavailable(
			goerr.New("unexpected status from ollama", goerr.V("status", resp.StatusCode), goerr.V("path", path)),
			"ollama")
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errEmbedderUnavailable(goerr.Wrap(err, "malformed ollama response"), "ollama")
	}

	var vector []float32
	switch {
	case len(parsed.Embeddings) > 0:
		vector = parsed.Embeddings[0]
	case len(parsed.Embedding) > 0:
		vector = parsed.Embedding
	}
	if len(vector) == 0 {
		return nil, errEmbedderUnavailable(goerr.New("empty embedding in ollama response"), "ollama")
	}

	o.mu.Lock()
	o.dim = len(vector)
	o.mu.Unlock()

	return vector, nil
}

func (o *OllamaEmbedder) Model() string {
	return o.model
}

func (o *OllamaEmbedder) Dimension(ctx context.Context) (int, error) {
	o.mu.Lock()
	dim := o.dim
	o.mu.Unlock()
	if dim > 0 {
		return dim, nil
	}

	vector, err := o.Embed(ctx, "probe")
	if err != nil {
		return 0, err
	}
	return len(vector), nil
}
