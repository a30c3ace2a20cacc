package settings

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the settings service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL is how long resolved settings are cached in memory.
	CacheTTL time.Duration
}

// Service resolves settings with caching and fallback to defaults. Reads
// never fail: a repository error is logged and the defaults are used, so
// decision points in the engine always have a usable configuration.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	cacheTTL time.Duration

	mu          sync.RWMutex
	cache       map[string]*Setting
	cacheExpiry time.Time
}

// NewService creates a new settings service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		cacheTTL: cacheTTL,
		cache:    make(map[string]*Setting),
	}
}

// Deletion resolves the deletion-engine settings, merging stored values over
// the defaults.
func (s *Service) Deletion(ctx context.Context) Deletion {
	d := DefaultDeletion()
	stored := s.all(ctx)

	if v, ok := s.boolValue(stored, KeyDeletionEnabled); ok {
		d.Enabled = v
	}
	if v, ok := s.floatValue(stored, KeyVotingDurationHours); ok && v > 0 {
		d.VotingDuration = time.Duration(v * float64(time.Hour))
	}
	if v, ok := s.floatValue(stored, KeyRequiredVotePercentage); ok && v >= 0 && v <= 100 {
		d.RequiredVotePercentage = v
	}
	if v, ok := s.boolValue(stored, KeyAutoDeleteOnApproval); ok {
		d.AutoDeleteOnApproval = v
	}
	if v, ok := s.boolValue(stored, KeyAllowNonAdminDelRequests); ok {
		d.AllowNonAdminRequests = v
	}
	return d
}

// Set stores a setting value and refreshes the cache entry.
func (s *Service) Set(ctx context.Context, key, value string) error {
	setting := &Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.repo.Set(ctx, setting); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[key] = setting
	s.mu.Unlock()
	return nil
}

// InvalidateCache clears cached settings, forcing a refresh on next read.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Setting)
	s.cacheExpiry = time.Time{}
}

// all returns the stored settings, from cache when fresh.
func (s *Service) all(ctx context.Context) map[string]*Setting {
	s.mu.RLock()
	if time.Now().Before(s.cacheExpiry) {
		cached := s.cache
		s.mu.RUnlock()
		return cached
	}
	s.mu.RUnlock()

	stored, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load settings, using defaults")
		return nil
	}

	s.mu.Lock()
	s.cache = stored
	s.cacheExpiry = time.Now().Add(s.cacheTTL)
	s.mu.Unlock()
	return stored
}

func (s *Service) boolValue(stored map[string]*Setting, key string) (bool, bool) {
	setting, ok := stored[key]
	if !ok {
		return false, false
	}
	v, err := strconv.ParseBool(setting.Value)
	if err != nil {
		s.logger.Warn().Str("key", key).Str("value", setting.Value).Msg("unparsable boolean setting, using default")
		return false, false
	}
	return v, true
}

func (s *Service) floatValue(stored map[string]*Setting, key string) (float64, bool) {
	setting, ok := stored[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil {
		s.logger.Warn().Str("key", key).Str("value", setting.Value).Msg("unparsable numeric setting, using default")
		return 0, false
	}
	return v, true
}
