package badge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReconcilerConfig holds configuration for the badge reconciler.
type ReconcilerConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Reconciler drives badges to their target state: for each badge type,
// exactly the current leader holds the badge. Reconcile is idempotent; a
// second run in the same window changes nothing.
type Reconciler struct {
	repo   Repository
	logger zerolog.Logger
	clock  func() time.Time
}

// NewReconciler creates a new badge reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		clock:  clock,
	}
}

// Reconcile diffs the current holders of a badge type against the computed
// leader: extra holders are revoked, the leader is awarded if missing. When
// the leader function reports no qualifying events, nothing changes.
func (r *Reconciler) Reconcile(ctx context.Context, badgeType Type, leaderFn LeaderFunc) error {
	leader, err := leaderFn(ctx)
	if err != nil {
		return fmt.Errorf("compute leader for %s: %w", badgeType, err)
	}
	if leader == nil {
		return nil
	}

	holders, err := r.repo.ListHolders(ctx, badgeType)
	if err != nil {
		return fmt.Errorf("list holders of %s: %w", badgeType, err)
	}

	alreadyHeld := false
	for _, holder := range holders {
		if holder.UserID == leader.UserID {
			alreadyHeld = true
			continue
		}
		if err := r.repo.Revoke(ctx, holder.UserID, badgeType); err != nil && !errors.Is(err, ErrBadgeNotFound) {
			return fmt.Errorf("revoke %s from %s: %w", badgeType, holder.UserID, err)
		}
		r.logger.Info().
			Str("badge_type", string(badgeType)).
			Str("user_id", holder.UserID).
			Msg("badge revoked from former leader")
	}

	if alreadyHeld {
		return nil
	}

	b := &Badge{
		ID:        "badge_" + uuid.New().String()[:22],
		UserID:    leader.UserID,
		Type:      badgeType,
		Metadata:  fmt.Sprintf(`{"count":%d}`, leader.Count),
		AwardedAt: r.clock(),
	}
	if err := r.repo.Award(ctx, b); err != nil {
		return fmt.Errorf("award %s to %s: %w", badgeType, leader.UserID, err)
	}

	r.logger.Info().
		Str("badge_type", string(badgeType)).
		Str("user_id", leader.UserID).
		Int("count", leader.Count).
		Msg("badge awarded to leader")
	return nil
}

// ReconcileTopReviewers reconciles the month and year top-reviewer badges
// against the review counts for the current calendar windows.
func (r *Reconciler) ReconcileTopReviewers(ctx context.Context) error {
	now := r.clock()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())

	if err := r.Reconcile(ctx, TypeTopReviewerMonth, r.topReviewerSince(monthStart)); err != nil {
		return err
	}
	return r.Reconcile(ctx, TypeTopReviewerYear, r.topReviewerSince(yearStart))
}

func (r *Reconciler) topReviewerSince(windowStart time.Time) LeaderFunc {
	return func(ctx context.Context) (*Leader, error) {
		leader, err := r.repo.TopReviewer(ctx, windowStart)
		if errors.Is(err, ErrBadgeNotFound) {
			return nil, nil
		}
		return leader, err
	}
}
