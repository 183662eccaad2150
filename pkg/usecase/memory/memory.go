package memory

import (
	"crypto/rand"
	"time"

	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/repository"
)

// Input limits. Oversized input is rejected before any adapter call.
const (
	MaxTopK         = 50
	MaxTextLength   = 8000
	MaxTags         = 20
	MaxTagLength    = 100
	MaxSourceLength = 200
	MaxBatchSize    = 100

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// UseCase provides memory store, search, list and delete operations
type UseCase struct {
	index    repository.Index
	embedder adapter.Embedder
	storage  adapter.Storage

	allowDegradedWrites bool
	probeTTL            time.Duration
	probeTimeout        time.Duration

	locks  *keyedLocks
	cursor *cursorCodec
	health *healthMonitor
	now    func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithDegradedWrites allows store to persist payload-only memories while the
// embedding provider is down
func WithDegradedWrites() Option {
	return func(uc *UseCase) {
		uc.allowDegradedWrites = true
	}
}

// WithCursorSecret sets the key used to sign pagination cursors. Without it a
// random per-process key is used, so cursors do not survive restarts.
func WithCursorSecret(secret []byte) Option {
	return func(uc *UseCase) {
		uc.cursor = newCursorCodec(secret)
	}
}

// WithProbeTTL sets how long a health probe result is reused
func WithProbeTTL(ttl time.Duration) Option {
	return func(uc *UseCase) {
		uc.probeTTL = ttl
	}
}

// WithProbeTimeout bounds each dependency probe
func WithProbeTimeout(timeout time.Duration) Option {
	return func(uc *UseCase) {
		uc.probeTimeout = timeout
	}
}

// WithStorage sets the snapshot storage used by Export and Import
func WithStorage(storage adapter.Storage) Option {
	return func(uc *UseCase) {
		uc.storage = storage
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a new memory UseCase instance
func New(index repository.Index, embedder adapter.Embedder, opts ...Option) *UseCase {
	uc := &UseCase{
		index:        index,
		embedder:     embedder,
		probeTTL:     3 * time.Second,
		probeTimeout: 5 * time.Second,
		locks:        newKeyedLocks(1024),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.cursor == nil {
		secret := make([]byte, 32)
		rand.Read(secret)
		uc.cursor = newCursorCodec(secret)
	}

	uc.health = newHealthMonitor(index, embedder, uc.probeTTL, uc.probeTimeout, uc.now)

	return uc
}
