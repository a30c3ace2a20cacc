package models

import (
	"github.com/reelhaven/reelhaven/internal/settings"
)

// DeletionSettingsResponse is the API view of the resolved deletion settings.
type DeletionSettingsResponse struct {
	Enabled                bool    `json:"enabled"`
	VotingDurationHours    float64 `json:"votingDurationHours"`
	RequiredVotePercentage float64 `json:"requiredVotePercentage"`
	AutoDeleteOnApproval   bool    `json:"autoDeleteOnApproval"`
	AllowNonAdminRequests  bool    `json:"allowNonAdminRequests"`
}

// NewDeletionSettingsResponse converts resolved settings into their API view.
func NewDeletionSettingsResponse(d settings.Deletion) *DeletionSettingsResponse {
	return &DeletionSettingsResponse{
		Enabled:                d.Enabled,
		VotingDurationHours:    d.VotingDuration.Hours(),
		RequiredVotePercentage: d.RequiredVotePercentage,
		AutoDeleteOnApproval:   d.AutoDeleteOnApproval,
		AllowNonAdminRequests:  d.AllowNonAdminRequests,
	}
}

// UpdateDeletionSettingsInput carries partial settings updates. Nil fields
// are left unchanged.
type UpdateDeletionSettingsInput struct {
	Enabled                *bool    `json:"enabled,omitempty"`
	VotingDurationHours    *float64 `json:"votingDurationHours,omitempty"`
	RequiredVotePercentage *float64 `json:"requiredVotePercentage,omitempty"`
	AutoDeleteOnApproval   *bool    `json:"autoDeleteOnApproval,omitempty"`
	AllowNonAdminRequests  *bool    `json:"allowNonAdminRequests,omitempty"`
}
