package models

import (
	"time"

	"github.com/reelhaven/reelhaven/internal/deletion"
)

// CreateDeletionRequestInput is the request body for opening a deletion request.
type CreateDeletionRequestInput struct {
	MediaID    string  `json:"mediaId"`
	MediaType  string  `json:"mediaType"`
	TMDBID     int64   `json:"tmdbId"`
	Title      string  `json:"title"`
	PosterPath string  `json:"posterPath,omitempty"`
	Reason     *string `json:"reason,omitempty"`
}

// VoteInput is the request body for casting a vote. Vote is a pointer so a
// missing field can be told apart from an explicit false.
type VoteInput struct {
	Vote *bool `json:"vote"`
}

// DeletionRequestResponse is the API view of a deletion request.
type DeletionRequestResponse struct {
	ID           string     `json:"id"`
	MediaID      string     `json:"mediaId"`
	MediaType    string     `json:"mediaType"`
	TMDBID       int64      `json:"tmdbId"`
	Title        string     `json:"title"`
	PosterPath   string     `json:"posterPath,omitempty"`
	Status       string     `json:"status"`
	Reason       *string    `json:"reason,omitempty"`
	RequestedBy  string     `json:"requestedBy"`
	VotingEndsAt time.Time  `json:"votingEndsAt"`
	VotesFor     int        `json:"votesFor"`
	VotesAgainst int        `json:"votesAgainst"`
	TotalVotes   int        `json:"totalVotes"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
	ProcessedBy  *string    `json:"processedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NewDeletionRequestResponse converts a domain request into its API view.
func NewDeletionRequestResponse(req *deletion.DeletionRequest) *DeletionRequestResponse {
	return &DeletionRequestResponse{
		ID:           req.ID,
		MediaID:      req.MediaID,
		MediaType:    string(req.MediaType),
		TMDBID:       req.TMDBID,
		Title:        req.Title,
		PosterPath:   req.PosterPath,
		Status:       string(req.Status),
		Reason:       req.Reason,
		RequestedBy:  req.RequestedBy,
		VotingEndsAt: req.VotingEndsAt,
		VotesFor:     req.VotesFor,
		VotesAgainst: req.VotesAgainst,
		TotalVotes:   req.VotesFor + req.VotesAgainst,
		ProcessedAt:  req.ProcessedAt,
		ProcessedBy:  req.ProcessedBy,
		CreatedAt:    req.CreatedAt,
		UpdatedAt:    req.UpdatedAt,
	}
}

// DeletionRequestListResponse wraps a page of deletion requests.
type DeletionRequestListResponse struct {
	Requests []*DeletionRequestResponse `json:"requests"`
	Count    int                        `json:"count"`
}

// NewDeletionRequestListResponse converts a slice of domain requests.
func NewDeletionRequestListResponse(reqs []*deletion.DeletionRequest) *DeletionRequestListResponse {
	out := make([]*DeletionRequestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, NewDeletionRequestResponse(req))
	}
	return &DeletionRequestListResponse{Requests: out, Count: len(out)}
}

// VoteResponse is the API view of a user's vote.
type VoteResponse struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	UserID    string    `json:"userId"`
	Vote      bool      `json:"vote"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewVoteResponse converts a domain vote into its API view.
func NewVoteResponse(v *deletion.DeletionVote) *VoteResponse {
	return &VoteResponse{
		ID:        v.ID,
		RequestID: v.RequestID,
		UserID:    v.UserID,
		Vote:      v.Value,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}
