package model

import "time"

// Mode is the operating state derived from dependency health
type Mode string

const (
	// ModeFull: both the embedding provider and the vector index are
	// healthy. All operations available.
	ModeFull Mode = "full"

	// ModeDegraded: index healthy, embedding provider down. List and delete
	// work normally; store may persist payload-only; search fails.
	ModeDegraded Mode = "degraded"

	// ModeUnavailable: index down. Every operation fails fast.
	ModeUnavailable Mode = "unavailable"
)

// Health is one health probe observation
type Health struct {
	Mode      Mode
	Index     bool
	Embedder  bool
	CheckedAt time.Time
}

// ResolveMode derives the operating mode from individual probe results
func ResolveMode(index, embedder bool) Mode {
	switch {
	case index && embedder:
		return ModeFull
	case index:
		return ModeDegraded
	default:
		return ModeUnavailable
	}
}
