package filtering

import (
	"context"

	"sieve/internal/config"
	"sieve/pkg/circuitbreaker"
)

// CircuitBreakerRepository fails fast with SERVICE_UNAVAILABLE while the
// saved filter store keeps erroring.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) Repository {
	if !cfg.Enabled {
		return repo
	}

	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(circuitbreaker.FromConfig("postgres-saved-filters", cfg)),
	}
}

func (r *CircuitBreakerRepository) Create(ctx context.Context, f *SavedFilter) error {
	return r.exec(ctx, func() error { return r.repo.Create(ctx, f) })
}

func (r *CircuitBreakerRepository) Get(ctx context.Context, id string) (*SavedFilter, error) {
	return circuitbreaker.Execute(ctx, r.cb, func() (*SavedFilter, error) {
		return r.repo.Get(ctx, id)
	})
}

func (r *CircuitBreakerRepository) List(ctx context.Context, limit, offset int) ([]SavedFilter, error) {
	return circuitbreaker.Execute(ctx, r.cb, func() ([]SavedFilter, error) {
		return r.repo.List(ctx, limit, offset)
	})
}

func (r *CircuitBreakerRepository) ListStreamFilters(ctx context.Context) ([]SavedFilter, error) {
	return circuitbreaker.Execute(ctx, r.cb, func() ([]SavedFilter, error) {
		return r.repo.ListStreamFilters(ctx)
	})
}

func (r *CircuitBreakerRepository) Update(ctx context.Context, f *SavedFilter) error {
	return r.exec(ctx, func() error { return r.repo.Update(ctx, f) })
}

func (r *CircuitBreakerRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, func() error { return r.repo.Delete(ctx, id) })
}

func (r *CircuitBreakerRepository) exec(ctx context.Context, fn func() error) error {
	_, err := circuitbreaker.Execute(ctx, r.cb, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
