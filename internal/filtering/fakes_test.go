package filtering

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "sieve/pkg/errors"
	"sieve/pkg/models"
)

type memoryRepository struct {
	mu      sync.Mutex
	filters map[string]SavedFilter
	seq     int
	err     error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{filters: make(map[string]SavedFilter)}
}

func (r *memoryRepository) Create(_ context.Context, f *SavedFilter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.filters {
		if existing.Name == f.Name {
			return pkgerrors.ErrConflict.WithDetail("name", f.Name)
		}
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	r.seq++
	f.CreatedAt = time.Unix(int64(r.seq), 0).UTC()
	f.UpdatedAt = f.CreatedAt
	r.filters[f.ID] = *f
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (*SavedFilter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	f, ok := r.filters[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return &f, nil
}

func (r *memoryRepository) sorted() []SavedFilter {
	out := make([]SavedFilter, 0, len(r.filters))
	for _, f := range r.filters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memoryRepository) List(_ context.Context, limit, offset int) ([]SavedFilter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	all := r.sorted()
	if offset >= len(all) {
		return []SavedFilter{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memoryRepository) ListStreamFilters(_ context.Context) ([]SavedFilter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]SavedFilter, 0)
	for _, f := range r.sorted() {
		if f.Stream && f.Enabled {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memoryRepository) Update(_ context.Context, f *SavedFilter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.filters[f.ID]; !ok {
		return pkgerrors.ErrNotFound.WithDetail("id", f.ID)
	}
	f.UpdatedAt = time.Now().UTC()
	r.filters[f.ID] = *f
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.filters[id]; !ok {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	delete(r.filters, id)
	return nil
}

type recordedEvent struct {
	action   string
	filterID string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishFilterEvent(_ context.Context, action, filterID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{action: action, filterID: filterID})
	return nil
}

type recordingProducer struct {
	mu       sync.Mutex
	topics   []string
	messages []models.MessageEnvelope
	err      error
}

func (p *recordingProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }
