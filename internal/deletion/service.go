package deletion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelhaven/reelhaven/internal/mediaserver"
	"github.com/reelhaven/reelhaven/internal/permission"
	"github.com/reelhaven/reelhaven/internal/settings"
)

// Validation constants.
const (
	MaxTitleLength  = 255
	MaxReasonLength = 1000
)

// ServiceConfig holds configuration for the deletion service.
type ServiceConfig struct {
	Repository  Repository
	Settings    *settings.Service
	Permissions permission.Checker
	Logger      zerolog.Logger

	// Media executes approved deletions. Nil disables execution (requests
	// stay approved until an operator handles them out of band).
	Media mediaserver.Deleter

	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time

	// EligibleVoters enables eager resolution when positive: a request is
	// resolved as soon as the outcome cannot change before the window
	// closes. Zero keeps resolution sweep-only.
	EligibleVoters int
}

// Service implements the deletion request lifecycle and vote casting.
// Resolve is the single resolution policy shared by eager resolution and the
// expiry sweeper.
type Service struct {
	repo           Repository
	settings       *settings.Service
	permissions    permission.Checker
	media          mediaserver.Deleter
	logger         zerolog.Logger
	clock          func() time.Time
	eligibleVoters int
}

// NewService creates a new deletion service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	permissions := cfg.Permissions
	if permissions == nil {
		permissions = permission.AllowAll{}
	}
	return &Service{
		repo:           cfg.Repository,
		settings:       cfg.Settings,
		permissions:    permissions,
		media:          cfg.Media,
		logger:         cfg.Logger,
		clock:          clock,
		eligibleVoters: cfg.EligibleVoters,
	}
}

// CreateInput is the payload for opening a deletion request.
type CreateInput struct {
	MediaID     string
	MediaType   MediaType
	TMDBID      int64
	Title       string
	PosterPath  string
	Reason      *string
	RequestedBy string
}

// ValidationError reports invalid create input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Create opens a deletion request for a media item. The request enters the
// voting state immediately; the pending state exists only for a future
// manual-approval step and is bypassed here. Returns *DuplicateRequestError
// (carrying the existing id) when an open request already targets the media.
func (s *Service) Create(ctx context.Context, input CreateInput) (*DeletionRequest, error) {
	cfg := s.settings.Deletion(ctx)
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	capability := permission.RequestDeletion
	if !cfg.AllowNonAdminRequests {
		capability = permission.ManageDeletion
	}
	allowed, err := s.permissions.HasPermission(ctx, input.RequestedBy, capability)
	if err != nil {
		return nil, fmt.Errorf("check permission: %w", err)
	}
	if !allowed {
		return nil, ErrForbidden
	}

	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetOpenRequestForMedia(ctx, input.MediaID, input.MediaType); err == nil {
		return nil, &DuplicateRequestError{ExistingID: existing.ID}
	} else if !errors.Is(err, ErrRequestNotFound) {
		return nil, err
	}

	now := s.clock()
	req := &DeletionRequest{
		ID:           "del_" + uuid.New().String()[:22],
		MediaID:      input.MediaID,
		MediaType:    input.MediaType,
		TMDBID:       input.TMDBID,
		Title:        input.Title,
		PosterPath:   input.PosterPath,
		Status:       StatusVoting,
		Reason:       input.Reason,
		RequestedBy:  input.RequestedBy,
		VotingEndsAt: now.Add(cfg.VotingDuration),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", req.ID).
		Str("media_id", req.MediaID).
		Str("media_type", string(req.MediaType)).
		Str("requested_by", req.RequestedBy).
		Time("voting_ends_at", req.VotingEndsAt).
		Msg("deletion request opened")
	return req, nil
}

// CastVote records or updates the user's vote. Re-voting with the same value
// is a no-op; flipping moves one unit between the counters. The vote and the
// counter move commit atomically in the store.
func (s *Service) CastVote(ctx context.Context, requestID, userID string, value bool) (*DeletionRequest, error) {
	now := s.clock()
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.VotingActiveAt(now) {
		return nil, ErrVotingClosed
	}

	update, err := s.repo.ApplyVote(ctx, requestID, userID, value, now)
	if err != nil {
		return nil, err
	}

	if update.Changed {
		s.maybeResolveEarly(ctx, update.Request)
	}
	return update.Request, nil
}

// RemoveVote withdraws the user's vote while the window is open.
func (s *Service) RemoveVote(ctx context.Context, requestID, userID string) (*DeletionRequest, error) {
	return s.repo.RemoveVote(ctx, requestID, userID, s.clock())
}

// Resolve closes voting on a request and applies the outcome policy: the
// tally's approval percentage against the configured threshold. It is the
// single code path deciding outcomes for both the expiry sweeper and eager
// resolution, and is idempotent: a request already outside voting is
// returned unchanged with no error, so concurrent sweeps never
// double-process. ProcessedBy stays nil for this automatic path.
func (s *Service) Resolve(ctx context.Context, requestID string) (Status, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.Status != StatusVoting {
		return req.Status, nil
	}

	cfg := s.settings.Deletion(ctx)
	outcome := Decide(req.Tally(), cfg.RequiredVotePercentage)
	now := s.clock()

	moved, err := s.repo.Transition(ctx, requestID, []Status{StatusVoting}, outcome, &now, nil)
	if err != nil {
		return "", err
	}
	if !moved {
		// Lost the race to a concurrent resolve; report its result.
		current, err := s.repo.GetRequest(ctx, requestID)
		if err != nil {
			return "", err
		}
		return current.Status, nil
	}

	s.logger.Info().
		Str("request_id", requestID).
		Str("outcome", string(outcome)).
		Int("votes_for", req.VotesFor).
		Int("votes_against", req.VotesAgainst).
		Float64("percentage", req.Tally().Percentage()).
		Msg("deletion request resolved")

	if outcome == StatusApproved && cfg.AutoDeleteOnApproval {
		if err := s.executeDeletion(ctx, req); err != nil {
			// The request stays approved for manual follow-up; the next
			// sweep will not retry because resolution has committed.
			s.logger.Error().Err(err).
				Str("request_id", requestID).
				Str("title", req.Title).
				Msg("auto-delete after approval failed")
			return StatusApproved, fmt.Errorf("%w: %v", ErrMediaDeletionFailed, err)
		}
		return StatusCompleted, nil
	}
	return outcome, nil
}

// Cancel withdraws a request before resolution. Only the requester or a user
// with the manage capability may cancel, and only from pending or voting.
func (s *Service) Cancel(ctx context.Context, requestID, by string) (*DeletionRequest, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if by != req.RequestedBy {
		allowed, err := s.permissions.HasPermission(ctx, by, permission.ManageDeletion)
		if err != nil {
			return nil, fmt.Errorf("check permission: %w", err)
		}
		if !allowed {
			return nil, ErrForbidden
		}
	}

	if !req.Status.Open() {
		return nil, ErrInvalidState
	}

	now := s.clock()
	moved, err := s.repo.Transition(ctx, requestID, []Status{StatusPending, StatusVoting}, StatusCancelled, &now, &by)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrInvalidState
	}

	s.logger.Info().Str("request_id", requestID).Str("cancelled_by", by).Msg("deletion request cancelled")
	return s.repo.GetRequest(ctx, requestID)
}

// ExecuteApproved runs the media deletion for an approved request on admin
// demand and marks it completed. Used when auto-delete is off or after an
// auto-delete failure.
func (s *Service) ExecuteApproved(ctx context.Context, requestID, by string) (*DeletionRequest, error) {
	allowed, err := s.permissions.HasPermission(ctx, by, permission.ManageDeletion)
	if err != nil {
		return nil, fmt.Errorf("check permission: %w", err)
	}
	if !allowed {
		return nil, ErrForbidden
	}

	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusApproved {
		return nil, ErrInvalidState
	}

	if err := s.executeDeletion(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaDeletionFailed, err)
	}

	moved, err := s.repo.Transition(ctx, requestID, []Status{StatusApproved}, StatusCompleted, nil, &by)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrInvalidState
	}

	s.logger.Info().Str("request_id", requestID).Str("executed_by", by).Msg("approved deletion executed")
	return s.repo.GetRequest(ctx, requestID)
}

// Recount repairs the denormalized counters from the vote rows.
func (s *Service) Recount(ctx context.Context, requestID string) (*DeletionRequest, error) {
	req, err := s.repo.RecountVotes(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("request_id", requestID).
		Int("votes_for", req.VotesFor).
		Int("votes_against", req.VotesAgainst).
		Msg("vote counters recounted")
	return req, nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, requestID string) (*DeletionRequest, error) {
	return s.repo.GetRequest(ctx, requestID)
}

// List returns requests, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*DeletionRequest, error) {
	return s.repo.ListRequests(ctx, opts)
}

// GetVote returns the user's vote on a request.
func (s *Service) GetVote(ctx context.Context, requestID, userID string) (*DeletionVote, error) {
	return s.repo.GetVote(ctx, requestID, userID)
}

// maybeResolveEarly resolves a request whose outcome is already certain.
// Best effort: correctness never depends on it, the sweeper resolves every
// request at window close through the same policy.
func (s *Service) maybeResolveEarly(ctx context.Context, req *DeletionRequest) {
	if s.eligibleVoters <= 0 {
		return
	}
	cfg := s.settings.Deletion(ctx)
	if _, decided := DecidedEarly(req.Tally(), cfg.RequiredVotePercentage, s.eligibleVoters); !decided {
		return
	}
	if _, err := s.Resolve(ctx, req.ID); err != nil {
		s.logger.Warn().Err(err).Str("request_id", req.ID).Msg("eager resolution failed")
	}
}

func (s *Service) executeDeletion(ctx context.Context, req *DeletionRequest) error {
	if s.media == nil {
		return errors.New("no media server configured")
	}
	err := s.media.DeleteMedia(ctx, req.MediaID, string(req.MediaType))
	if errors.Is(err, mediaserver.ErrMediaNotFound) {
		// Already gone; the goal state is reached.
		return nil
	}
	return err
}

func validateCreateInput(input CreateInput) error {
	if strings.TrimSpace(input.MediaID) == "" {
		return &ValidationError{Field: "mediaId", Message: "is required"}
	}
	if !input.MediaType.Valid() {
		return &ValidationError{Field: "mediaType", Message: "must be movie or tv"}
	}
	if strings.TrimSpace(input.Title) == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if len(input.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Message: "is too long"}
	}
	if strings.TrimSpace(input.RequestedBy) == "" {
		return &ValidationError{Field: "requestedBy", Message: "is required"}
	}
	if input.Reason != nil && len(*input.Reason) > MaxReasonLength {
		return &ValidationError{Field: "reason", Message: "is too long"}
	}
	return nil
}
