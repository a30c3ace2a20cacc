package badge

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	badges  []*Badge
	reviews []review
}

type review struct {
	userID    string
	createdAt time.Time
}

// NewInMemoryRepository creates a new in-memory badge repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// AddReview records a review event for leaderboard aggregation.
func (r *InMemoryRepository) AddReview(userID string, createdAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews = append(r.reviews, review{userID: userID, createdAt: createdAt})
}

// ListHolders returns all current holders of a badge type.
func (r *InMemoryRepository) ListHolders(_ context.Context, badgeType Type) ([]*Badge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Badge
	for _, b := range r.badges {
		if b.Type == badgeType {
			cpy := *b
			out = append(out, &cpy)
		}
	}
	return out, nil
}

// Award persists a new badge.
func (r *InMemoryRepository) Award(_ context.Context, badge *Badge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *badge
	r.badges = append(r.badges, &cpy)
	return nil
}

// Revoke removes the badge of the given type from a user.
func (r *InMemoryRepository) Revoke(_ context.Context, userID string, badgeType Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, b := range r.badges {
		if b.UserID == userID && b.Type == badgeType {
			r.badges = append(r.badges[:i], r.badges[i+1:]...)
			return nil
		}
	}
	return ErrBadgeNotFound
}

// TopReviewer returns the user with the most reviews since windowStart.
func (r *InMemoryRepository) TopReviewer(_ context.Context, windowStart time.Time) (*Leader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, rev := range r.reviews {
		if !rev.createdAt.Before(windowStart) {
			counts[rev.userID]++
		}
	}

	var leader *Leader
	for userID, count := range counts {
		if leader == nil || count > leader.Count || (count == leader.Count && userID < leader.UserID) {
			leader = &Leader{UserID: userID, Count: count}
		}
	}
	if leader == nil {
		return nil, ErrBadgeNotFound
	}
	return leader, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
