// Package badge provides time-windowed leaderboard badges and the
// reconciliation routine that keeps holders in sync with the current leader.
package badge

import (
	"context"
	"errors"
	"time"
)

// ErrBadgeNotFound is returned when a badge lookup matches nothing.
var ErrBadgeNotFound = errors.New("badge not found")

// Type identifies a badge category.
type Type string

// Leaderboard badge types.
const (
	TypeTopReviewerMonth Type = "top_reviewer_month"
	TypeTopReviewerYear  Type = "top_reviewer_year"
)

// Badge is an awarded badge. Metadata is an opaque string blob attached by
// whoever awards the badge; this package stores it without validating it.
type Badge struct {
	ID        string
	UserID    string
	Type      Type
	Metadata  string
	AwardedAt time.Time
}

// Leader is the user currently at the top of a leaderboard window.
type Leader struct {
	UserID string
	Count  int
}

// LeaderFunc computes the current leader for a badge. A nil Leader means no
// qualifying events exist in the window.
type LeaderFunc func(ctx context.Context) (*Leader, error)

// Repository defines the interface for badge storage.
type Repository interface {
	// ListHolders returns all current holders of a badge type.
	ListHolders(ctx context.Context, badgeType Type) ([]*Badge, error)

	// Award persists a new badge.
	Award(ctx context.Context, badge *Badge) error

	// Revoke removes the badge of the given type from a user.
	// Returns ErrBadgeNotFound if the user does not hold it.
	Revoke(ctx context.Context, userID string, badgeType Type) error

	// TopReviewer returns the user with the most reviews since the window
	// start, or ErrBadgeNotFound when no reviews exist in the window.
	TopReviewer(ctx context.Context, windowStart time.Time) (*Leader, error)
}
