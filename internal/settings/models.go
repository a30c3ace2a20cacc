// Package settings provides runtime-tunable application settings backed by a
// repository, with an in-memory cache and built-in defaults.
package settings

import (
	"context"
	"errors"
	"time"
)

// ErrSettingNotFound is returned when a setting key has no stored value.
var ErrSettingNotFound = errors.New("setting not found")

// Deletion setting keys.
const (
	KeyDeletionEnabled          = "deletion.enabled"
	KeyVotingDurationHours      = "deletion.votingDurationHours"
	KeyRequiredVotePercentage   = "deletion.requiredVotePercentage"
	KeyAutoDeleteOnApproval     = "deletion.autoDeleteOnApproval"
	KeyAllowNonAdminDelRequests = "deletion.allowNonAdminDeletionRequests"
)

// Setting is a single stored key/value pair. Values are stored as strings
// and parsed at read time; unparsable values fall back to defaults.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Deletion holds the resolved deletion-engine settings.
type Deletion struct {
	// Enabled gates the whole deletion-request feature.
	Enabled bool

	// VotingDuration is the length of the voting window.
	VotingDuration time.Duration

	// RequiredVotePercentage is the approval threshold in percent.
	RequiredVotePercentage float64

	// AutoDeleteOnApproval makes resolution call the media server directly.
	AutoDeleteOnApproval bool

	// AllowNonAdminRequests lets regular users open deletion requests.
	AllowNonAdminRequests bool
}

// DefaultDeletion returns the defaults used when no stored value exists.
func DefaultDeletion() Deletion {
	return Deletion{
		Enabled:                true,
		VotingDuration:         48 * time.Hour,
		RequiredVotePercentage: 60,
		AutoDeleteOnApproval:   false,
		AllowNonAdminRequests:  true,
	}
}

// Repository defines the interface for settings storage.
type Repository interface {
	// Get retrieves a single setting by key.
	Get(ctx context.Context, key string) (*Setting, error)

	// GetAll retrieves all settings keyed by name.
	GetAll(ctx context.Context) (map[string]*Setting, error)

	// Set creates or updates a setting.
	Set(ctx context.Context, setting *Setting) error

	// Delete removes a setting, reverting it to the default.
	Delete(ctx context.Context, key string) error
}
