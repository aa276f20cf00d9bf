package core

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultBatchSize is the number of rows inserted per bulk-load batch.
const DefaultBatchSize = 1000

// SearchLimit caps the results of a name search.
const SearchLimit = 20

// Options configures a Repository. The zero value gives a fail-fast
// validator, batches of DefaultBatchSize and the default logger.
type Options struct {
	Validator Validator
	BatchSize int
	Logger    *slog.Logger
	// LoadGate, when set, serializes bulk loads within the process.
	LoadGate *LoadGate
}

// Repository is the CRUD surface over a Store. Every method validates its
// input before touching the store.
type Repository struct {
	store     Store
	validator Validator
	allocator *Allocator
	batchSize int
	gate      *LoadGate
	logger    *slog.Logger
}

// NewRepository creates a repository backed by store.
func NewRepository(store Store, opts Options) *Repository {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Repository{
		store:     store,
		validator: opts.Validator,
		allocator: NewAllocator(store, logger),
		batchSize: batchSize,
		gate:      opts.LoadGate,
		logger:    logger,
	}
}

// BatchSize returns the configured bulk-load batch size.
func (r *Repository) BatchSize() int {
	return r.batchSize
}

// Ping checks that the store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// Count returns the number of stored patients.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	n, err := r.store.Count(ctx, Filter{})
	if err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

// log returns the repository logger tagged with the operation source.
func (r *Repository) log(ctx context.Context) *slog.Logger {
	if src := SourceFromContext(ctx); src != "" {
		return r.logger.With("source", src)
	}
	return r.logger
}
