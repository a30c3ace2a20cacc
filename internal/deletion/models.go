// Package deletion implements the community deletion-request voting engine:
// request lifecycle, vote casting and the resolution policy.
package deletion

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by the deletion engine.
var (
	ErrRequestNotFound = errors.New("deletion request not found")
	ErrVoteNotFound    = errors.New("deletion vote not found")
	ErrVotingClosed    = errors.New("voting window is closed")
	ErrInvalidState    = errors.New("operation not allowed in current request state")
	ErrDisabled        = errors.New("deletion requests are disabled")
	ErrForbidden       = errors.New("not permitted")

	// ErrMediaDeletionFailed is returned when a request resolved to approved
	// but the media server rejected the deletion. The request stays approved
	// for manual follow-up; resolution itself has already committed.
	ErrMediaDeletionFailed = errors.New("media deletion failed")
)

// DuplicateRequestError is returned when an open deletion request already
// exists for the target media. It carries the existing request's id so
// callers can link to it instead of showing a generic conflict.
type DuplicateRequestError struct {
	ExistingID string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("an open deletion request already exists for this media: %s", e.ExistingID)
}

// MediaType identifies the kind of library item a request targets.
type MediaType string

// Supported media types.
const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Valid reports whether the media type is one of the supported values.
func (m MediaType) Valid() bool {
	return m == MediaTypeMovie || m == MediaTypeTV
}

// Status is the lifecycle state of a deletion request.
//
// pending -> voting -> approved -> completed
// pending -> voting -> rejected
// pending/voting -> cancelled
type Status string

const (
	// StatusPending is reserved for a future manual-approval step.
	// Create moves straight to voting, so steady-state operation never
	// observes it; it is accepted by Cancel for completeness.
	StatusPending Status = "pending"

	// StatusVoting means the voting window is open (until VotingEndsAt).
	StatusVoting Status = "voting"

	// StatusApproved means the vote passed; the media is awaiting deletion.
	StatusApproved Status = "approved"

	// StatusRejected means the vote failed. Terminal.
	StatusRejected Status = "rejected"

	// StatusCompleted means the approved deletion was executed. Terminal.
	StatusCompleted Status = "completed"

	// StatusCancelled means the requester or an admin withdrew the request
	// before resolution. Terminal.
	StatusCancelled Status = "cancelled"
)

// Open reports whether the request still counts against the
// one-open-request-per-media constraint.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusVoting
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// DeletionRequest is a community proposal to remove one media item from the
// library. Title, TMDBID and PosterPath are a display snapshot taken at
// creation time and never re-fetched.
type DeletionRequest struct {
	ID         string
	MediaID    string
	MediaType  MediaType
	TMDBID     int64
	Title      string
	PosterPath string

	Status      Status
	Reason      *string
	RequestedBy string

	// VotingEndsAt closes the voting window; voting is active iff
	// Status == voting and now is before this instant.
	VotingEndsAt time.Time

	// VotesFor/VotesAgainst are denormalized counters maintained by the
	// store's atomic vote operations. They must always equal the count of
	// vote rows partitioned by value; RecountVotes repairs drift.
	VotesFor     int
	VotesAgainst int

	// ProcessedAt/ProcessedBy are set exactly once, when the request leaves
	// the voting state. ProcessedBy is nil for automatic resolution.
	ProcessedAt *time.Time
	ProcessedBy *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// VotingActiveAt reports whether a vote cast at the given instant is inside
// the voting window.
func (r *DeletionRequest) VotingActiveAt(now time.Time) bool {
	return r.Status == StatusVoting && now.Before(r.VotingEndsAt)
}

// Tally returns the current vote tally.
func (r *DeletionRequest) Tally() Tally {
	return Tally{For: r.VotesFor, Against: r.VotesAgainst}
}

// DeletionVote is a single user's vote on a deletion request. At most one
// vote exists per (request, user) pair; a repeat vote updates the row.
type DeletionVote struct {
	ID        string
	RequestID string
	UserID    string

	// Value is true for a vote in favor of deletion, false against.
	Value bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
