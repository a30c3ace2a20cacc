package deletion

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.Mutex
	requests map[string]*DeletionRequest
	// votes is keyed by request id, then user id.
	votes map[string]map[string]*DeletionVote
}

// NewInMemoryRepository creates a new in-memory deletion repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		requests: make(map[string]*DeletionRequest),
		votes:    make(map[string]map[string]*DeletionVote),
	}
}

// CreateRequest persists a new request.
func (r *InMemoryRepository) CreateRequest(_ context.Context, req *DeletionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.requests {
		if existing.MediaID == req.MediaID && existing.MediaType == req.MediaType && existing.Status.Open() {
			return &DuplicateRequestError{ExistingID: existing.ID}
		}
	}

	cpy := *req
	r.requests[req.ID] = &cpy
	return nil
}

// GetRequest returns a request by id.
func (r *InMemoryRepository) GetRequest(_ context.Context, id string) (*DeletionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getRequestLocked(id)
}

func (r *InMemoryRepository) getRequestLocked(id string) (*DeletionRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cpy := *req
	return &cpy, nil
}

// GetOpenRequestForMedia returns the open request for the media, if any.
func (r *InMemoryRepository) GetOpenRequestForMedia(_ context.Context, mediaID string, mediaType MediaType) (*DeletionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.requests {
		if req.MediaID == mediaID && req.MediaType == mediaType && req.Status.Open() {
			cpy := *req
			return &cpy, nil
		}
	}
	return nil, ErrRequestNotFound
}

// ListRequests returns requests, newest first.
func (r *InMemoryRepository) ListRequests(_ context.Context, opts ListOptions) ([]*DeletionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*DeletionRequest
	for _, req := range r.requests {
		if opts.Status != "" && req.Status != opts.Status {
			continue
		}
		cpy := *req
		out = append(out, &cpy)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ListExpiredVoting returns voting requests whose window closed before now.
func (r *InMemoryRepository) ListExpiredVoting(_ context.Context, now time.Time) ([]*DeletionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*DeletionRequest
	for _, req := range r.requests {
		if req.Status == StatusVoting && req.VotingEndsAt.Before(now) {
			cpy := *req
			out = append(out, &cpy)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].VotingEndsAt.Before(out[j].VotingEndsAt)
	})
	return out, nil
}

// Transition moves a request between states if the precondition holds.
func (r *InMemoryRepository) Transition(_ context.Context, id string, from []Status, to Status, processedAt *time.Time, processedBy *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return false, ErrRequestNotFound
	}

	matched := false
	for _, s := range from {
		if req.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	req.Status = to
	if processedAt != nil {
		req.ProcessedAt = processedAt
	}
	if processedBy != nil {
		req.ProcessedBy = processedBy
	}
	req.UpdatedAt = time.Now()
	return true, nil
}

// GetVote returns the user's vote on a request.
func (r *InMemoryRepository) GetVote(_ context.Context, requestID, userID string) (*DeletionVote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vote, ok := r.votes[requestID][userID]
	if !ok {
		return nil, ErrVoteNotFound
	}
	cpy := *vote
	return &cpy, nil
}

// ListVotes returns all votes for a request.
func (r *InMemoryRepository) ListVotes(_ context.Context, requestID string) ([]*DeletionVote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*DeletionVote
	for _, vote := range r.votes[requestID] {
		cpy := *vote
		out = append(out, &cpy)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ApplyVote upserts the user's vote and moves the counters atomically.
func (r *InMemoryRepository) ApplyVote(_ context.Context, requestID, userID string, value bool, now time.Time) (*VoteUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if !req.VotingActiveAt(now) {
		return nil, ErrVotingClosed
	}

	if r.votes[requestID] == nil {
		r.votes[requestID] = make(map[string]*DeletionVote)
	}

	update := &VoteUpdate{}
	existing, ok := r.votes[requestID][userID]
	switch {
	case !ok:
		r.votes[requestID][userID] = &DeletionVote{
			ID:        "vote_" + uuid.New().String()[:22],
			RequestID: requestID,
			UserID:    userID,
			Value:     value,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if value {
			req.VotesFor++
		} else {
			req.VotesAgainst++
		}
		update.Changed = true
	case existing.Value != value:
		prev := existing.Value
		existing.Value = value
		existing.UpdatedAt = now
		if value {
			req.VotesFor++
			req.VotesAgainst--
		} else {
			req.VotesAgainst++
			req.VotesFor--
		}
		update.Previous = &prev
		update.Changed = true
	default:
		prev := existing.Value
		update.Previous = &prev
	}

	if update.Changed {
		req.UpdatedAt = now
	}
	cpy := *req
	update.Request = &cpy
	return update, nil
}

// RemoveVote deletes the user's vote and decrements the counter atomically.
func (r *InMemoryRepository) RemoveVote(_ context.Context, requestID, userID string, now time.Time) (*DeletionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	vote, ok := r.votes[requestID][userID]
	if !ok {
		return nil, ErrVoteNotFound
	}
	if !req.VotingActiveAt(now) {
		return nil, ErrVotingClosed
	}

	delete(r.votes[requestID], userID)
	if vote.Value {
		req.VotesFor--
	} else {
		req.VotesAgainst--
	}
	req.UpdatedAt = now

	cpy := *req
	return &cpy, nil
}

// RecountVotes recomputes the counters from the vote rows.
func (r *InMemoryRepository) RecountVotes(_ context.Context, requestID string) (*DeletionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}

	votesFor, votesAgainst := 0, 0
	for _, vote := range r.votes[requestID] {
		if vote.Value {
			votesFor++
		} else {
			votesAgainst++
		}
	}
	req.VotesFor = votesFor
	req.VotesAgainst = votesAgainst
	req.UpdatedAt = time.Now()

	cpy := *req
	return &cpy, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
