package badge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL badge repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListHolders returns all current holders of a badge type.
func (r *PostgresRepository) ListHolders(ctx context.Context, badgeType Type) ([]*Badge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, badge_type, metadata, awarded_at
		FROM badges
		WHERE badge_type = $1
		ORDER BY awarded_at ASC`,
		badgeType,
	)
	if err != nil {
		return nil, fmt.Errorf("list badge holders: %w", err)
	}
	defer rows.Close()

	var badges []*Badge
	for rows.Next() {
		var b Badge
		if err := rows.Scan(&b.ID, &b.UserID, &b.Type, &b.Metadata, &b.AwardedAt); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, &b)
	}
	return badges, rows.Err()
}

// Award persists a new badge.
func (r *PostgresRepository) Award(ctx context.Context, badge *Badge) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO badges (id, user_id, badge_type, metadata, awarded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		badge.ID, badge.UserID, badge.Type, badge.Metadata, badge.AwardedAt,
	)
	if err != nil {
		return fmt.Errorf("award badge: %w", err)
	}
	return nil
}

// Revoke removes the badge of the given type from a user.
func (r *PostgresRepository) Revoke(ctx context.Context, userID string, badgeType Type) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM badges WHERE user_id = $1 AND badge_type = $2`,
		userID, badgeType,
	)
	if err != nil {
		return fmt.Errorf("revoke badge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBadgeNotFound
	}
	return nil
}

// TopReviewer returns the user with the most reviews since windowStart.
// Ties break on user id so the result is deterministic.
func (r *PostgresRepository) TopReviewer(ctx context.Context, windowStart time.Time) (*Leader, error) {
	var leader Leader
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, COUNT(*) AS review_count
		FROM reviews
		WHERE created_at >= $1
		GROUP BY user_id
		ORDER BY review_count DESC, user_id ASC
		LIMIT 1`,
		windowStart,
	).Scan(&leader.UserID, &leader.Count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBadgeNotFound
		}
		return nil, fmt.Errorf("aggregate top reviewer: %w", err)
	}
	return &leader, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
