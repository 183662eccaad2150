package repository

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

func errMemoryNotFound(id model.MemoryID) error {
	return goerr.New("memory not found",
		goerr.T(model.TagNotFound),
		goerr.V("memory_id", id))
}

// errIndexUnavailable wraps a backend failure so the engine can tell which
// dependency and which operation failed.
func errIndexUnavailable(err error, op string) error {
	return goerr.Wrap(err, "vector index request failed",
		goerr.T(model.TagUnavailable),
		goerr.V("dependency", model.DependencyIndex),
		goerr.V("operation", op))
}
