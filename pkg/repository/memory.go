package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/recall/pkg/model"
)

// Memory is an in-process Index for tests and single-shot CLI runs. It keeps
// every point in a map and brute-forces cosine similarity, which is plenty
// for a personal store.
type Memory struct {
	mu     sync.RWMutex
	points map[model.MemoryID]*model.Memory
	meta   *model.IndexMeta
}

// NewMemory creates an empty in-process index
func NewMemory() *Memory {
	return &Memory{
		points: make(map[model.MemoryID]*model.Memory),
	}
}

func (r *Memory) Upsert(ctx context.Context, mem *model.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *mem
	r.points[mem.ID] = &copied
	return nil
}

func (r *Memory) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mem, ok := r.points[id]
	if !ok {
		return nil, errMemoryNotFound(id)
	}
	copied := *mem
	return &copied, nil
}

func (r *Memory) Lookup(ctx context.Context, dedupeKey string) (*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, mem := range r.points {
		if mem.DedupeKey == dedupeKey {
			copied := *mem
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *Memory) Query(ctx context.Context, vector []float32, limit int, filter *Filter) ([]*model.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*model.SearchResult
	for _, mem := range r.points {
		if mem.PendingEmbed || len(mem.Embedding) == 0 {
			continue
		}
		if !matchesFilter(mem, filter) {
			continue
		}
		copied := *mem
		results = append(results, &model.SearchResult{
			Memory: &copied,
			Score:  cosineSimilarity(vector, mem.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r *Memory) Scan(ctx context.Context, limit int, after *ScanKey) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := make([]*model.Memory, 0, len(r.points))
	for _, mem := range r.points {
		ordered = append(ordered, mem)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})

	var page []*model.Memory
	for _, mem := range ordered {
		if after != nil && !beforeScanKey(mem, after) {
			continue
		}
		copied := *mem
		page = append(page, &copied)
		if len(page) >= limit {
			break
		}
	}
	return page, nil
}

// beforeScanKey reports whether mem sorts strictly after the resume key in
// the (CreatedAt desc, ID desc) order.
func beforeScanKey(mem *model.Memory, after *ScanKey) bool {
	if mem.CreatedAt.Before(after.CreatedAt) {
		return true
	}
	return mem.CreatedAt.Equal(after.CreatedAt) && mem.ID < after.ID
}

func (r *Memory) Delete(ctx context.Context, id model.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.points, id)
	return nil
}

func (r *Memory) Meta(ctx context.Context) (*model.IndexMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.meta == nil {
		return nil, nil
	}
	copied := *r.meta
	return &copied, nil
}

func (r *Memory) SetMeta(ctx context.Context, meta *model.IndexMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *meta
	r.meta = &copied
	return nil
}

func (r *Memory) Ping(ctx context.Context) error {
	return nil
}

func (r *Memory) Close() error {
	return nil
}

// Count returns the number of stored points. Test helper.
func (r *Memory) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.points)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
