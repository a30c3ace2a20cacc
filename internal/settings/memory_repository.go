package settings

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	settings map[string]*Setting
}

// NewInMemoryRepository creates a new in-memory settings repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{settings: make(map[string]*Setting)}
}

// Get retrieves a single setting by key.
func (r *InMemoryRepository) Get(_ context.Context, key string) (*Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	setting, ok := r.settings[key]
	if !ok {
		return nil, ErrSettingNotFound
	}
	cpy := *setting
	return &cpy, nil
}

// GetAll retrieves all settings keyed by name.
func (r *InMemoryRepository) GetAll(_ context.Context) (map[string]*Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Setting, len(r.settings))
	for k, v := range r.settings {
		cpy := *v
		out[k] = &cpy
	}
	return out, nil
}

// Set creates or updates a setting.
func (r *InMemoryRepository) Set(_ context.Context, setting *Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *setting
	r.settings[setting.Key] = &cpy
	return nil
}

// Delete removes a setting.
func (r *InMemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.settings, key)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
