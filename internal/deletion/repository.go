package deletion

import (
	"context"
	"time"
)

// ListOptions filters request listings.
type ListOptions struct {
	// Status limits results to one lifecycle state. Empty means all.
	Status Status

	// Limit caps the number of results. <= 0 means the repository default.
	Limit int
}

// VoteUpdate describes the effect of an ApplyVote call.
type VoteUpdate struct {
	// Request is the request after any counter changes.
	Request *DeletionRequest

	// Previous is the user's prior vote value, nil if this was their first
	// vote on the request.
	Previous *bool

	// Changed reports whether the counters moved: false for an idempotent
	// re-vote with the same value.
	Changed bool
}

// Repository is the transactional store behind the deletion engine.
//
// Concurrency contract: ApplyVote and RemoveVote must execute the vote upsert
// and the counter move as one atomic unit per request, serialized against
// other vote operations on the same request (row lock or equivalent), so
// concurrent casts never lose an increment. Transition is a compare-and-swap
// on status: it must only apply when the current status is one of from, and
// report whether it did, so Resolve stays idempotent under concurrent sweeps.
type Repository interface {
	// CreateRequest persists a new request. Returns *DuplicateRequestError
	// if an open request already exists for the same media.
	CreateRequest(ctx context.Context, req *DeletionRequest) error

	// GetRequest returns a request by id, or ErrRequestNotFound.
	GetRequest(ctx context.Context, id string) (*DeletionRequest, error)

	// GetOpenRequestForMedia returns the open (pending or voting) request
	// for the media, or ErrRequestNotFound if none exists.
	GetOpenRequestForMedia(ctx context.Context, mediaID string, mediaType MediaType) (*DeletionRequest, error)

	// ListRequests returns requests, newest first.
	ListRequests(ctx context.Context, opts ListOptions) ([]*DeletionRequest, error)

	// ListExpiredVoting returns all requests in voting whose window closed
	// before now, in window-close order.
	ListExpiredVoting(ctx context.Context, now time.Time) ([]*DeletionRequest, error)

	// Transition moves a request from one of the given states to another,
	// setting ProcessedAt/ProcessedBy when non-nil. Returns false (and no
	// error) when the request exists but is not in any of the from states.
	Transition(ctx context.Context, id string, from []Status, to Status, processedAt *time.Time, processedBy *string) (bool, error)

	// GetVote returns the user's vote on a request, or ErrVoteNotFound.
	GetVote(ctx context.Context, requestID, userID string) (*DeletionVote, error)

	// ListVotes returns all votes for a request.
	ListVotes(ctx context.Context, requestID string) ([]*DeletionVote, error)

	// ApplyVote upserts the user's vote and adjusts the request counters in
	// one atomic unit. A new vote increments one bucket; a flipped vote
	// moves one unit between buckets; a same-value re-vote is a no-op.
	// Returns ErrRequestNotFound or ErrVotingClosed when the window is not
	// active at now.
	ApplyVote(ctx context.Context, requestID, userID string, value bool, now time.Time) (*VoteUpdate, error)

	// RemoveVote deletes the user's vote and decrements the matching
	// counter atomically. Returns ErrVoteNotFound if no vote exists, or
	// ErrVotingClosed when the window is not active at now.
	RemoveVote(ctx context.Context, requestID, userID string, now time.Time) (*DeletionRequest, error)

	// RecountVotes recomputes the counters from the vote rows and persists
	// them. Repair escape hatch for counter drift; used by admin tooling
	// and tests.
	RecountVotes(ctx context.Context, requestID string) (*DeletionRequest, error)
}
