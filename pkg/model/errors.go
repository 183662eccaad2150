package model

import "github.com/m-mizutani/goerr/v2"

// Error tags classify every failure the engine can surface. Transports map
// them to their own response formats; the engine itself never speaks HTTP.
var (
	// TagValidation marks input the caller must fix. Rejected before any
	// adapter call.
	TagValidation = goerr.NewTag("validation")

	// TagUnavailable marks a dependency failure. The failing dependency is
	// attached as the "dependency" value ("index" or "embedder").
	TagUnavailable = goerr.NewTag("unavailable")

	// TagNotFound marks a lookup miss. Internal to the engine: delete treats
	// it as success, dedupe lookup as the insert branch.
	TagNotFound = goerr.NewTag("not_found")

	// TagConflict marks a dedupe serialization violation. This indicates a
	// bug or corrupted data, never normal operation.
	TagConflict = goerr.NewTag("conflict")
)

var (
	ErrEmptyText     = goerr.New("text must not be empty", goerr.T(TagValidation))
	ErrInvalidTopK   = goerr.New("top_k must be a positive integer", goerr.T(TagValidation))
	ErrInvalidCursor = goerr.New("cursor is invalid or tampered", goerr.T(TagValidation))

	// ErrSearchDegraded is returned for search while the embedding provider
	// is down. Text-only fallback results would silently change the meaning
	// of a search, so the request fails instead.
	ErrSearchDegraded = goerr.New("search requires embeddings and the embedding provider is unavailable",
		goerr.T(TagUnavailable), goerr.V("dependency", DependencyEmbedder))

	// ErrModelMismatch is fatal at startup: the index was built with a
	// different embedding model or dimension than the configured one.
	ErrModelMismatch = goerr.New("embedding model mismatch with existing index", goerr.T(TagConflict))
)

// Dependency names attached to TagUnavailable errors
const (
	DependencyIndex    = "index"
	DependencyEmbedder = "embedder"
)

// ErrKind is the coarse classification transports use to pick a response
type ErrKind string

const (
	KindValidation  ErrKind = "validation_error"
	KindUnavailable ErrKind = "dependency_unavailable"
	KindNotFound    ErrKind = "not_found"
	KindConflict    ErrKind = "conflict"
	KindInternal    ErrKind = "internal_error"
)

// Classify returns the taxonomy kind of an error
func Classify(err error) ErrKind {
	switch {
	case err == nil:
		return ""
	case goerr.HasTag(err, TagValidation):
		return KindValidation
	case goerr.HasTag(err, TagUnavailable):
		return KindUnavailable
	case goerr.HasTag(err, TagNotFound):
		return KindNotFound
	case goerr.HasTag(err, TagConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// FailedDependency extracts the "dependency" value from an unavailable
// error, or "" if absent
func FailedDependency(err error) string {
	goErr := goerr.Unwrap(err)
	if goErr == nil {
		return ""
	}
	if dep, ok := goErr.Values()["dependency"].(string); ok {
		return dep
	}
	return ""
}
