package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// requestColumns is the column list shared by request queries.
const requestColumns = `
	id, media_id, media_type, tmdb_id, title, poster_path,
	status, reason, requested_by, voting_ends_at,
	votes_for, votes_against, processed_at, processed_by,
	created_at, updated_at`

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// Vote operations run in a transaction that locks the request row, so the
// counter moves are serialized per request. Open-request uniqueness is backed
// by a partial unique index on (media_id, media_type) where status is open.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL deletion repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateRequest persists a new request.
func (r *PostgresRepository) CreateRequest(ctx context.Context, req *DeletionRequest) error {
	query := `
		INSERT INTO deletion_requests (
			id, media_id, media_type, tmdb_id, title, poster_path,
			status, reason, requested_by, voting_ends_at,
			votes_for, votes_against, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.MediaID, req.MediaType, req.TMDBID, req.Title, req.PosterPath,
		req.Status, req.Reason, req.RequestedBy, req.VotingEndsAt,
		req.VotesFor, req.VotesAgainst, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, lookupErr := r.GetOpenRequestForMedia(ctx, req.MediaID, req.MediaType)
			if lookupErr != nil {
				return fmt.Errorf("create deletion request: conflict on media %s but existing request lookup failed: %w", req.MediaID, lookupErr)
			}
			return &DuplicateRequestError{ExistingID: existing.ID}
		}
		return fmt.Errorf("create deletion request: %w", err)
	}
	return nil
}

// GetRequest returns a request by id.
func (r *PostgresRepository) GetRequest(ctx context.Context, id string) (*DeletionRequest, error) {
	query := `SELECT` + requestColumns + ` FROM deletion_requests WHERE id = $1`
	return r.scanRequest(r.pool.QueryRow(ctx, query, id))
}

// GetOpenRequestForMedia returns the open request for the media, if any.
func (r *PostgresRepository) GetOpenRequestForMedia(ctx context.Context, mediaID string, mediaType MediaType) (*DeletionRequest, error) {
	query := `
		SELECT` + requestColumns + `
		FROM deletion_requests
		WHERE media_id = $1 AND media_type = $2 AND status IN ('pending', 'voting')
	`
	return r.scanRequest(r.pool.QueryRow(ctx, query, mediaID, mediaType))
}

// ListRequests returns requests, newest first.
func (r *PostgresRepository) ListRequests(ctx context.Context, opts ListOptions) ([]*DeletionRequest, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT` + requestColumns + `
		FROM deletion_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, string(opts.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list deletion requests: %w", err)
	}
	defer rows.Close()

	return r.collectRequests(rows)
}

// ListExpiredVoting returns voting requests whose window closed before now.
func (r *PostgresRepository) ListExpiredVoting(ctx context.Context, now time.Time) ([]*DeletionRequest, error) {
	query := `
		SELECT` + requestColumns + `
		FROM deletion_requests
		WHERE status = 'voting' AND voting_ends_at < $1
		ORDER BY voting_ends_at ASC
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired voting requests: %w", err)
	}
	defer rows.Close()

	return r.collectRequests(rows)
}

// Transition moves a request between states if the precondition holds.
func (r *PostgresRepository) Transition(ctx context.Context, id string, from []Status, to Status, processedAt *time.Time, processedBy *string) (bool, error) {
	fromStates := make([]string, 0, len(from))
	for _, s := range from {
		fromStates = append(fromStates, string(s))
	}

	query := `
		UPDATE deletion_requests
		SET status = $2,
		    processed_at = COALESCE($3, processed_at),
		    processed_by = COALESCE($4, processed_by),
		    updated_at = now()
		WHERE id = $1 AND status = ANY($5)
	`

	tag, err := r.pool.Exec(ctx, query, id, to, processedAt, processedBy, fromStates)
	if err != nil {
		return false, fmt.Errorf("transition deletion request: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish a lost CAS from a missing request.
	if _, err := r.GetRequest(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// GetVote returns the user's vote on a request.
func (r *PostgresRepository) GetVote(ctx context.Context, requestID, userID string) (*DeletionVote, error) {
	query := `
		SELECT id, request_id, user_id, value, created_at, updated_at
		FROM deletion_votes
		WHERE request_id = $1 AND user_id = $2
	`

	var vote DeletionVote
	err := r.pool.QueryRow(ctx, query, requestID, userID).Scan(
		&vote.ID, &vote.RequestID, &vote.UserID, &vote.Value, &vote.CreatedAt, &vote.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("get deletion vote: %w", err)
	}
	return &vote, nil
}

// ListVotes returns all votes for a request.
func (r *PostgresRepository) ListVotes(ctx context.Context, requestID string) ([]*DeletionVote, error) {
	query := `
		SELECT id, request_id, user_id, value, created_at, updated_at
		FROM deletion_votes
		WHERE request_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list deletion votes: %w", err)
	}
	defer rows.Close()

	var votes []*DeletionVote
	for rows.Next() {
		var vote DeletionVote
		if err := rows.Scan(&vote.ID, &vote.RequestID, &vote.UserID, &vote.Value, &vote.CreatedAt, &vote.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan deletion vote: %w", err)
		}
		votes = append(votes, &vote)
	}
	return votes, rows.Err()
}

// ApplyVote upserts the user's vote and moves the counters atomically.
func (r *PostgresRepository) ApplyVote(ctx context.Context, requestID, userID string, value bool, now time.Time) (*VoteUpdate, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin vote transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	req, err := r.lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.VotingActiveAt(now) {
		return nil, ErrVotingClosed
	}

	update := &VoteUpdate{}

	var prev bool
	err = tx.QueryRow(ctx,
		`SELECT value FROM deletion_votes WHERE request_id = $1 AND user_id = $2`,
		requestID, userID,
	).Scan(&prev)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO deletion_votes (id, request_id, user_id, value, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)`,
			"vote_"+uuid.New().String()[:22], requestID, userID, value, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert deletion vote: %w", err)
		}
		update.Changed = true
		if value {
			req.VotesFor++
		} else {
			req.VotesAgainst++
		}
		err = r.setCounters(ctx, tx, requestID, req.VotesFor, req.VotesAgainst)
	case err != nil:
		return nil, fmt.Errorf("get deletion vote: %w", err)
	case prev != value:
		_, err = tx.Exec(ctx, `
			UPDATE deletion_votes SET value = $3, updated_at = $4
			WHERE request_id = $1 AND user_id = $2`,
			requestID, userID, value, now,
		)
		if err != nil {
			return nil, fmt.Errorf("update deletion vote: %w", err)
		}
		update.Previous = &prev
		update.Changed = true
		if value {
			req.VotesFor++
			req.VotesAgainst--
		} else {
			req.VotesAgainst++
			req.VotesFor--
		}
		err = r.setCounters(ctx, tx, requestID, req.VotesFor, req.VotesAgainst)
	default:
		// Same value again: idempotent re-vote, no counter change.
		update.Previous = &prev
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit vote transaction: %w", err)
	}

	update.Request = req
	return update, nil
}

// RemoveVote deletes the user's vote and decrements the counter atomically.
func (r *PostgresRepository) RemoveVote(ctx context.Context, requestID, userID string, now time.Time) (*DeletionRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin vote transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	req, err := r.lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}

	var prev bool
	err = tx.QueryRow(ctx,
		`SELECT value FROM deletion_votes WHERE request_id = $1 AND user_id = $2`,
		requestID, userID,
	).Scan(&prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("get deletion vote: %w", err)
	}

	if !req.VotingActiveAt(now) {
		return nil, ErrVotingClosed
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM deletion_votes WHERE request_id = $1 AND user_id = $2`,
		requestID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("delete deletion vote: %w", err)
	}

	if prev {
		req.VotesFor--
	} else {
		req.VotesAgainst--
	}
	if err := r.setCounters(ctx, tx, requestID, req.VotesFor, req.VotesAgainst); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit vote transaction: %w", err)
	}
	return req, nil
}

// RecountVotes recomputes the counters from the vote rows.
func (r *PostgresRepository) RecountVotes(ctx context.Context, requestID string) (*DeletionRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin recount transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	req, err := r.lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}

	var votesFor, votesAgainst int
	err = tx.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE value),
			COUNT(*) FILTER (WHERE NOT value)
		FROM deletion_votes
		WHERE request_id = $1`,
		requestID,
	).Scan(&votesFor, &votesAgainst)
	if err != nil {
		return nil, fmt.Errorf("recount deletion votes: %w", err)
	}

	req.VotesFor = votesFor
	req.VotesAgainst = votesAgainst
	if err := r.setCounters(ctx, tx, requestID, votesFor, votesAgainst); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit recount transaction: %w", err)
	}
	return req, nil
}

// lockRequest reads a request row under FOR UPDATE within tx.
func (r *PostgresRepository) lockRequest(ctx context.Context, tx pgx.Tx, id string) (*DeletionRequest, error) {
	query := `SELECT` + requestColumns + ` FROM deletion_requests WHERE id = $1 FOR UPDATE`
	return r.scanRequest(tx.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) setCounters(ctx context.Context, tx pgx.Tx, id string, votesFor, votesAgainst int) error {
	_, err := tx.Exec(ctx, `
		UPDATE deletion_requests
		SET votes_for = $2, votes_against = $3, updated_at = now()
		WHERE id = $1`,
		id, votesFor, votesAgainst,
	)
	if err != nil {
		return fmt.Errorf("update vote counters: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanRequest(row pgx.Row) (*DeletionRequest, error) {
	var req DeletionRequest
	err := row.Scan(
		&req.ID, &req.MediaID, &req.MediaType, &req.TMDBID, &req.Title, &req.PosterPath,
		&req.Status, &req.Reason, &req.RequestedBy, &req.VotingEndsAt,
		&req.VotesFor, &req.VotesAgainst, &req.ProcessedAt, &req.ProcessedBy,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("scan deletion request: %w", err)
	}
	return &req, nil
}

func (r *PostgresRepository) collectRequests(rows pgx.Rows) ([]*DeletionRequest, error) {
	var requests []*DeletionRequest
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
