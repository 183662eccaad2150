package model_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
)

func TestDedupeMemoryID(t *testing.T) {
	a := model.DedupeMemoryID("todo:milk")
	b := model.DedupeMemoryID("todo:milk")
	c := model.DedupeMemoryID("todo:bread")

	gt.Equal(t, a, b)
	gt.V(t, a).NotEqual(c)

	// random IDs never collide with each other
	gt.V(t, model.NewMemoryID()).NotEqual(model.NewMemoryID())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected model.ErrKind
	}{
		{"nil", nil, ""},
		{"validation sentinel", model.ErrEmptyText, model.KindValidation},
		{"wrapped validation", goerr.Wrap(model.ErrInvalidCursor, "while listing"), model.KindValidation},
		{"degraded search", model.ErrSearchDegraded, model.KindUnavailable},
		{"model mismatch", model.ErrModelMismatch, model.KindConflict},
		{"plain error", errors.New("boom"), model.KindInternal},
		{
			"tagged not found",
			goerr.New("no such memory", goerr.T(model.TagNotFound)),
			model.KindNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, model.Classify(tc.err), tc.expected)
		})
	}
}

func TestFailedDependency(t *testing.T) {
	gt.Equal(t, model.FailedDependency(model.ErrSearchDegraded), model.DependencyEmbedder)

	indexErr := goerr.New("index down",
		goerr.T(model.TagUnavailable),
		goerr.V("dependency", model.DependencyIndex))
	gt.Equal(t, model.FailedDependency(indexErr), model.DependencyIndex)

	gt.Equal(t, model.FailedDependency(errors.New("boom")), "")
}

func TestResolveMode(t *testing.T) {
	gt.Equal(t, model.ResolveMode(true, true), model.ModeFull)
	gt.Equal(t, model.ResolveMode(true, false), model.ModeDegraded)
	gt.Equal(t, model.ResolveMode(false, true), model.ModeUnavailable)
	gt.Equal(t, model.ResolveMode(false, false), model.ModeUnavailable)
}
