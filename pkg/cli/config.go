package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/repository"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Index backend
	backend          string
	qdrantHost       string
	qdrantPort       int64
	qdrantCollection string
	project          string
	database         string
	collection       string

	// Embedding provider
	embedProvider  string
	geminiProject  string
	geminiLocation string
	geminiModel    string
	ollamaURL      string
	ollamaModel    string
	embedCacheSize int64
	embedDim       int64

	// Engine behavior
	allowDegradedWrites bool
	apiToken            string
}

// loadDotEnv loads ~/.recall/.env when it exists, so credentials do not have
// to live in the shell profile. Real environment variables win.
func loadDotEnv() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(home, ".recall", ".env"))
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("RECALL_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("RECALL_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "Vector index backend (qdrant, firestore)",
			Value:       "qdrant",
			Sources:     cli.EnvVars("RECALL_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "qdrant-host",
			Usage:       "Qdrant gRPC host",
			Value:       "localhost",
			Sources:     cli.EnvVars("RECALL_QDRANT_HOST"),
			Destination: &cfg.qdrantHost,
		},
		&cli.IntFlag{
			Name:        "qdrant-port",
			Usage:       "Qdrant gRPC port",
			Value:       6334,
			Sources:     cli.EnvVars("RECALL_QDRANT_PORT"),
			Destination: &cfg.qdrantPort,
		},
		&cli.StringFlag{
			Name:        "collection",
			Usage:       "Collection name for memories",
			Value:       "memories",
			Sources:     cli.EnvVars("RECALL_COLLECTION"),
			Destination: &cfg.collection,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID (firestore backend)",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.BoolFlag{
			Name:        "allow-degraded-writes",
			Usage:       "Persist payload-only memories while the embedding provider is down",
			Sources:     cli.EnvVars("RECALL_ALLOW_DEGRADED_WRITES"),
			Destination: &cfg.allowDegradedWrites,
		},
		&cli.StringFlag{
			Name:        "token",
			Usage:       "API bearer token; also signs pagination cursors",
			Sources:     cli.EnvVars("RECALL_TOKEN"),
			Destination: &cfg.apiToken,
		},
	}
}

// embedderFlags returns flags for embedding provider configuration
func embedderFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedder",
			Aliases:     []string{"e"},
			Usage:       "Embedding provider (gemini, ollama)",
			Value:       "ollama",
			Sources:     cli.EnvVars("RECALL_EMBEDDER"),
			Destination: &cfg.embedProvider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini embedding model",
			Sources:     cli.EnvVars("GEMINI_EMBED_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "ollama-url",
			Usage:       "Ollama base URL",
			Value:       "http://localhost:11434",
			Sources:     cli.EnvVars("OLLAMA_URL"),
			Destination: &cfg.ollamaURL,
		},
		&cli.StringFlag{
			Name:        "ollama-model",
			Usage:       "Ollama embedding model",
			Value:       "nomic-embed-text",
			Sources:     cli.EnvVars("OLLAMA_EMBED_MODEL"),
			Destination: &cfg.ollamaModel,
		},
		&cli.IntFlag{
			Name:        "embed-cache",
			Usage:       "In-process embedding cache size (0 disables)",
			Value:       4096,
			Sources:     cli.EnvVars("RECALL_EMBED_CACHE"),
			Destination: &cfg.embedCacheSize,
		},
		&cli.IntFlag{
			Name:        "embed-dim",
			Usage:       "Embedding vector dimension; lets degraded writes land on an empty qdrant collection",
			Sources:     cli.EnvVars("RECALL_EMBED_DIM"),
			Destination: &cfg.embedDim,
		},
	}
}

// setupLogger installs the configured logger as the process default
func (cfg *config) setupLogger() {
	logging.SetDefault(logging.New(cfg.logLevel, cfg.logFormat, os.Stderr))
}

// newIndex creates the configured index backend
func (cfg *config) newIndex(ctx context.Context) (repository.Index, error) {
	switch cfg.backend {
	case "qdrant":
		var opts []repository.QdrantOption
		if cfg.embedDim > 0 {
			opts = append(opts, repository.WithQdrantDimension(int(cfg.embedDim)))
		}
		return repository.NewQdrant(cfg.qdrantHost, int(cfg.qdrantPort), cfg.collection, opts...)

	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for the firestore backend")
		}
		return repository.NewFirestore(ctx, cfg.project, cfg.database, cfg.collection)

	default:
		return nil, goerr.New("unknown backend", goerr.V("backend", cfg.backend))
	}
}

// newEmbedder creates the configured embedding provider
func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	var embedder adapter.Embedder

	switch cfg.embedProvider {
	case "gemini":
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project is required for the gemini embedder")
		}
		var opts []adapter.GeminiOption
		if cfg.geminiModel != "" {
			opts = append(opts, adapter.WithGeminiModel(cfg.geminiModel))
		}
		gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
		if err != nil {
			return nil, err
		}
		embedder = gemini

	case "ollama":
		embedder = adapter.NewOllama(cfg.ollamaURL, cfg.ollamaModel)

	default:
		return nil, goerr.New("unknown embedding provider", goerr.V("embedder", cfg.embedProvider))
	}

	if cfg.embedCacheSize > 0 {
		cached, err := adapter.NewCachedEmbedder(embedder, cfg.embedCacheSize)
		if err != nil {
			return nil, err
		}
		embedder = cached
	}
	return embedder, nil
}

// newUseCase wires the memory engine from the configuration
func (cfg *config) newUseCase(ctx context.Context, opts ...memory.Option) (*memory.UseCase, error) {
	index, err := cfg.newIndex(ctx)
	if err != nil {
		return nil, err
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.allowDegradedWrites {
		opts = append(opts, memory.WithDegradedWrites())
	}
	if cfg.apiToken != "" {
		opts = append(opts, memory.WithCursorSecret([]byte(cfg.apiToken)))
	}

	return memory.New(index, embedder, opts...), nil
}

// newStorage creates snapshot storage: a gs:// URL selects Cloud Storage,
// anything else a local directory
func newStorage(ctx context.Context, target string) (adapter.Storage, string, error) {
	if bucket, key, ok := splitGCSURL(target); ok {
		storage, err := adapter.NewStorage(ctx, bucket)
		if err != nil {
			return nil, "", err
		}
		return storage, key, nil
	}

	dir := filepath.Dir(target)
	if dir == "" || dir == "." {
		dir = "."
	}
	return adapter.NewLocalStorage(dir), filepath.Base(target), nil
}

func splitGCSURL(target string) (bucket, key string, ok bool) {
	const scheme = "gs://"
	if len(target) <= len(scheme) || target[:len(scheme)] != scheme {
		return "", "", false
	}

	rest := target[len(scheme):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], rest[i+1:], true
		}
	}
	return rest, "", true
}
