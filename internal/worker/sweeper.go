// Package worker provides background job processing for Reelhaven: the
// expired-vote sweeper and badge reconciliation scheduling.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelhaven/reelhaven/internal/deletion"
	"github.com/reelhaven/reelhaven/internal/settings"
)

// ErrSweepInProgress is returned when a run is requested while a previous
// run is still active. Overlapping runs skip rather than queue.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Resolver applies the resolution policy to one request. Implemented by
// *deletion.Service.
type Resolver interface {
	Resolve(ctx context.Context, requestID string) (deletion.Status, error)
}

// SweeperConfig holds configuration for the expired-vote sweeper.
type SweeperConfig struct {
	Repository deletion.Repository
	Resolver   Resolver
	Settings   *settings.Service
	Logger     zerolog.Logger

	// Interval is the cadence of the Start loop. Default: 5 minutes.
	Interval time.Duration

	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time
}

// SweepStatus is a snapshot of the sweeper's progress.
type SweepStatus struct {
	Running  bool `json:"running"`
	Progress int  `json:"progress"`
	Total    int  `json:"total"`
}

// SweepError records one isolated per-request failure.
type SweepError struct {
	RequestID string
	Title     string
	Err       string
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	StartedAt time.Time
	Duration  time.Duration
	Expired   int
	Resolved  int
	Failed    int
	Cancelled bool
	Errors    []SweepError
}

// Sweeper resolves deletion requests whose voting window has elapsed. Runs
// are mutually exclusive, process requests sequentially, isolate per-request
// failures, and can be cancelled cooperatively between items.
type Sweeper struct {
	repo     deletion.Repository
	resolver Resolver
	settings *settings.Service
	logger   zerolog.Logger
	interval time.Duration
	clock    func() time.Time

	mu       sync.Mutex
	running  bool
	progress int
	total    int

	cancelled atomic.Bool
}

// NewSweeper creates a new expired-vote sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval == 0 {
		interval = 5 * time.Minute
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		repo:     cfg.Repository,
		resolver: cfg.Resolver,
		settings: cfg.Settings,
		logger:   cfg.Logger,
		interval: interval,
		clock:    clock,
	}
}

// Start runs the sweeper on its interval until the context is cancelled.
// A tick that finds a previous run still active is skipped.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("expired-vote sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expired-vote sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				if errors.Is(err, ErrSweepInProgress) {
					s.logger.Debug().Msg("previous sweep still running, skipping tick")
					continue
				}
				s.logger.Error().Err(err).Msg("sweep run failed")
			}
		}
	}
}

// RunOnce executes a single sweep: list every request whose voting window
// closed before now and resolve each in turn. A failing item is recorded and
// the sweep continues; a failing scan aborts the run. Progress counters are
// reset when the run finishes, whatever its outcome.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSweepInProgress
	}
	s.running = true
	s.progress = 0
	s.total = 0
	s.cancelled.Store(false)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.progress = 0
		s.total = 0
		s.mu.Unlock()
	}()

	result := &SweepResult{StartedAt: s.clock()}
	defer func() {
		result.Duration = s.clock().Sub(result.StartedAt)
	}()

	if !s.settings.Deletion(ctx).Enabled {
		s.logger.Debug().Msg("deletion feature disabled, skipping sweep")
		return result, nil
	}

	expired, err := s.repo.ListExpiredVoting(ctx, s.clock())
	if err != nil {
		return nil, fmt.Errorf("list expired voting requests: %w", err)
	}

	result.Expired = len(expired)
	s.mu.Lock()
	s.total = len(expired)
	s.mu.Unlock()

	if len(expired) > 0 {
		s.logger.Info().Int("expired", len(expired)).Msg("sweeping expired voting windows")
	}

	for _, req := range expired {
		if s.cancelled.Load() || ctx.Err() != nil {
			result.Cancelled = true
			s.logger.Info().
				Int("progress", result.Resolved+result.Failed).
				Int("total", result.Expired).
				Msg("sweep cancelled")
			break
		}

		status, err := s.resolver.Resolve(ctx, req.ID)
		if err != nil {
			// Isolated: the next scheduled run re-attempts anything still
			// expired, and Resolve is idempotent.
			result.Failed++
			result.Errors = append(result.Errors, SweepError{
				RequestID: req.ID,
				Title:     req.Title,
				Err:       err.Error(),
			})
			s.logger.Error().Err(err).
				Str("request_id", req.ID).
				Str("title", req.Title).
				Msg("failed to resolve expired request")
		} else {
			result.Resolved++
			s.logger.Debug().
				Str("request_id", req.ID).
				Str("status", string(status)).
				Msg("expired request resolved")
		}

		s.mu.Lock()
		s.progress++
		s.mu.Unlock()
	}

	s.logger.Info().
		Int("expired", result.Expired).
		Int("resolved", result.Resolved).
		Int("failed", result.Failed).
		Bool("cancelled", result.Cancelled).
		Msg("sweep completed")
	return result, nil
}

// Cancel requests cooperative cancellation of the active run. The item being
// resolved completes; the loop exits before the next one.
func (s *Sweeper) Cancel() {
	s.cancelled.Store(true)
}

// Status returns a snapshot of the sweeper's progress.
func (s *Sweeper) Status() SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SweepStatus{
		Running:  s.running,
		Progress: s.progress,
		Total:    s.total,
	}
}
