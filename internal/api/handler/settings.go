package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/reelhaven/reelhaven/internal/api/models"
	"github.com/reelhaven/reelhaven/internal/api/response"
	"github.com/reelhaven/reelhaven/internal/settings"
)

// SettingsHandler handles deletion settings endpoints. Admin only.
type SettingsHandler struct {
	service *settings.Service
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(service *settings.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// GetDeletionSettings handles GET /v1/admin/settings/deletion.
func (h *SettingsHandler) GetDeletionSettings(w http.ResponseWriter, r *http.Request) {
	resolved := h.service.Deletion(r.Context())
	response.JSON(w, r, http.StatusOK, models.NewDeletionSettingsResponse(resolved))
}

// UpdateDeletionSettings handles PUT /v1/admin/settings/deletion. Only the
// fields present in the body are changed.
func (h *SettingsHandler) UpdateDeletionSettings(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateDeletionSettingsInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	if input.VotingDurationHours != nil && *input.VotingDurationHours <= 0 {
		response.BadRequest(w, r, "validation failed", []models.FieldError{
			{Field: "votingDurationHours", Message: "must be greater than zero"},
		})
		return
	}
	if input.RequiredVotePercentage != nil && (*input.RequiredVotePercentage < 0 || *input.RequiredVotePercentage > 100) {
		response.BadRequest(w, r, "validation failed", []models.FieldError{
			{Field: "requiredVotePercentage", Message: "must be between 0 and 100"},
		})
		return
	}

	updates := map[string]*string{}
	if input.Enabled != nil {
		updates[settings.KeyDeletionEnabled] = boolString(*input.Enabled)
	}
	if input.VotingDurationHours != nil {
		updates[settings.KeyVotingDurationHours] = floatString(*input.VotingDurationHours)
	}
	if input.RequiredVotePercentage != nil {
		updates[settings.KeyRequiredVotePercentage] = floatString(*input.RequiredVotePercentage)
	}
	if input.AutoDeleteOnApproval != nil {
		updates[settings.KeyAutoDeleteOnApproval] = boolString(*input.AutoDeleteOnApproval)
	}
	if input.AllowNonAdminRequests != nil {
		updates[settings.KeyAllowNonAdminDelRequests] = boolString(*input.AllowNonAdminRequests)
	}

	for key, value := range updates {
		if err := h.service.Set(r.Context(), key, *value); err != nil {
			response.InternalError(w, r, "failed to store setting")
			return
		}
	}

	resolved := h.service.Deletion(r.Context())
	response.JSON(w, r, http.StatusOK, models.NewDeletionSettingsResponse(resolved))
}

func boolString(v bool) *string {
	s := strconv.FormatBool(v)
	return &s
}

func floatString(v float64) *string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return &s
}
