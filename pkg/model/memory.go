package model

import (
	"time"

	"github.com/google/uuid"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// DedupeMemoryID derives the stable MemoryID for a dedupe key. Every store
// with the same key maps to the same ID, so concurrent inserts converge on
// one point instead of racing into duplicates.
func DedupeMemoryID(dedupeKey string) MemoryID {
	return MemoryID(uuid.NewSHA1(uuid.NameSpaceDNS, []byte("v1:"+dedupeKey)).String())
}

// Memory represents a stored text unit with tags, metadata and an optional
// embedding vector
type Memory struct {
	ID         MemoryID
	Text       string
	Tags       []string
	Source     string
	DedupeKey  string
	ExternalID string
	Embedding  []float32

	// PendingEmbed marks a memory persisted while the embedding provider was
	// down. It is excluded from similarity search until a re-embedding pass
	// fills in the vector.
	PendingEmbed bool

	CreatedAt time.Time
	// FirstCreatedAt survives dedupe overwrites; CreatedAt is refreshed on
	// every write.
	FirstCreatedAt time.Time
}

// SearchResult is a memory returned from similarity search with its score
type SearchResult struct {
	Memory *Memory
	Score  float64
}

// IndexMeta is the embedding model fingerprint stored alongside the vectors.
// A collection created with one model must not be queried with vectors from
// another.
type IndexMeta struct {
	SchemaVersion int
	Model         string
	Dimension     int
}

const CurrentSchemaVersion = 1

// StoreStrategy tells a caller whether a store inserted a new memory or
// overwrote an existing one via its dedupe key.
type StoreStrategy string

const (
	StrategyInserted    StoreStrategy = "inserted"
	StrategyOverwritten StoreStrategy = "overwritten"
)
