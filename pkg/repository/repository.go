package repository

import (
	"context"
	"time"

	"github.com/m-mizutani/recall/pkg/model"
)

// Filter restricts search results by payload fields. All set fields are
// AND-combined.
type Filter struct {
	Source string
	Tags   []string
}

// ScanKey is a resume position in the (CreatedAt desc, ID desc) total order
// used by Scan. The ID tie-break keeps the order total even when timestamps
// collide.
type ScanKey struct {
	CreatedAt time.Time
	ID        model.MemoryID
}

// Index is the vector index boundary. Implementations must be safe for
// concurrent use.
//
// Error contract: connectivity and backend failures are wrapped with
// model.TagUnavailable and dependency "index"; a Get miss carries
// model.TagNotFound; Lookup and Delete misses are not errors.
type Index interface {
	// Upsert writes a memory (vector and payload) under its ID. The write
	// must be acknowledged before return: a memory is visible to search and
	// list as soon as Upsert succeeds.
	Upsert(ctx context.Context, mem *model.Memory) error

	// Get retrieves one memory by ID
	Get(ctx context.Context, id model.MemoryID) (*model.Memory, error)

	// Lookup finds the live memory holding a dedupe key via a payload-
	// filtered point lookup. Returns (nil, nil) when no memory holds it.
	Lookup(ctx context.Context, dedupeKey string) (*model.Memory, error)

	// Query runs nearest-neighbor search, excluding memories that have no
	// usable embedding. Results are ordered by descending similarity.
	Query(ctx context.Context, vector []float32, limit int, filter *Filter) ([]*model.SearchResult, error)

	// Scan lists memories ordered by (CreatedAt desc, ID desc) starting
	// strictly after the given key, or from the top when after is nil.
	Scan(ctx context.Context, limit int, after *ScanKey) ([]*model.Memory, error)

	// Delete removes a memory. Deleting an unknown ID is a no-op success.
	Delete(ctx context.Context, id model.MemoryID) error

	// Meta returns the stored embedding-model fingerprint, or nil when the
	// index holds none yet
	Meta(ctx context.Context) (*model.IndexMeta, error)

	// SetMeta persists the embedding-model fingerprint
	SetMeta(ctx context.Context, meta *model.IndexMeta) error

	// Ping is the health probe: cheap, bounded by the caller's context
	Ping(ctx context.Context) error

	// Close releases backend connections
	Close() error
}

// matchesFilter reports whether a memory satisfies a payload filter.
// Shared by backends that filter client-side.
func matchesFilter(mem *model.Memory, filter *Filter) bool {
	if filter == nil {
		return true
	}
	if filter.Source != "" && mem.Source != filter.Source {
		return false
	}
	for _, want := range filter.Tags {
		found := false
		for _, tag := range mem.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
