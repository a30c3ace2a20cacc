// Package handler provides HTTP handlers for the Reelhaven API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reelhaven/reelhaven/internal/api/models"
	"github.com/reelhaven/reelhaven/internal/api/response"
	"github.com/reelhaven/reelhaven/internal/deletion"
)

// DeletionHandler handles deletion request endpoints.
type DeletionHandler struct {
	service *deletion.Service
}

// NewDeletionHandler creates a new DeletionHandler.
func NewDeletionHandler(service *deletion.Service) *DeletionHandler {
	return &DeletionHandler{service: service}
}

// Create handles POST /v1/deletion-requests - open a deletion request.
func (h *DeletionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.CreateDeletionRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	req, err := h.service.Create(r.Context(), deletion.CreateInput{
		MediaID:     input.MediaID,
		MediaType:   deletion.MediaType(input.MediaType),
		TMDBID:      input.TMDBID,
		Title:       input.Title,
		PosterPath:  input.PosterPath,
		Reason:      input.Reason,
		RequestedBy: GetUserID(r.Context()),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	location := fmt.Sprintf("/v1/deletion-requests/%s", req.ID)
	response.Created(w, r, location, models.NewDeletionRequestResponse(req))
}

// List handles GET /v1/deletion-requests - list deletion requests.
func (h *DeletionHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := deletion.ListOptions{
		Status: deletion.Status(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			response.BadRequest(w, r, "limit must be a non-negative integer", nil)
			return
		}
		opts.Limit = limit
	}

	reqs, err := h.service.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewDeletionRequestListResponse(reqs))
}

// Get handles GET /v1/deletion-requests/{requestId}.
func (h *DeletionHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	req, err := h.service.Get(r.Context(), requestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewDeletionRequestResponse(req))
}

// Vote handles POST /v1/deletion-requests/{requestId}/votes - cast or change a vote.
func (h *DeletionHandler) Vote(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	var input models.VoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}
	if input.Vote == nil {
		response.BadRequest(w, r, "vote is required", []models.FieldError{
			{Field: "vote", Message: "must be true or false"},
		})
		return
	}

	req, err := h.service.CastVote(r.Context(), requestID, GetUserID(r.Context()), *input.Vote)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewDeletionRequestResponse(req))
}

// GetMyVote handles GET /v1/deletion-requests/{requestId}/votes/me.
func (h *DeletionHandler) GetMyVote(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	vote, err := h.service.GetVote(r.Context(), requestID, GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewVoteResponse(vote))
}

// RemoveMyVote handles DELETE /v1/deletion-requests/{requestId}/votes/me.
func (h *DeletionHandler) RemoveMyVote(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	if _, err := h.service.RemoveVote(r.Context(), requestID, GetUserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// Cancel handles POST /v1/deletion-requests/{requestId}/cancel.
func (h *DeletionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	req, err := h.service.Cancel(r.Context(), requestID, GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewDeletionRequestResponse(req))
}

// Execute handles POST /v1/deletion-requests/{requestId}/execute - run the
// media deletion for an approved request. Admin only.
func (h *DeletionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	req, err := h.service.ExecuteApproved(r.Context(), requestID, GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewDeletionRequestResponse(req))
}

// Recount handles POST /v1/deletion-requests/{requestId}/recount - repair the
// denormalized vote counters. Admin only.
func (h *DeletionHandler) Recount(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")

	req, err := h.service.Recount(r.Context(), requestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewDeletionRequestResponse(req))
}

// writeError maps domain errors to Problem responses.
func (h *DeletionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var dup *deletion.DuplicateRequestError
	var validation *deletion.ValidationError

	switch {
	case errors.Is(err, deletion.ErrRequestNotFound), errors.Is(err, deletion.ErrVoteNotFound):
		response.NotFound(w, r, err.Error())
	case errors.As(err, &dup):
		response.Conflict(w, r, fmt.Sprintf("an open deletion request already exists: %s", dup.ExistingID))
	case errors.As(err, &validation):
		response.BadRequest(w, r, "validation failed", []models.FieldError{
			{Field: validation.Field, Message: validation.Message},
		})
	case errors.Is(err, deletion.ErrVotingClosed):
		response.Conflict(w, r, "the voting window for this request is closed")
	case errors.Is(err, deletion.ErrInvalidState):
		response.Conflict(w, r, "the request is not in a state that allows this operation")
	case errors.Is(err, deletion.ErrForbidden):
		response.Forbidden(w, r, "you do not have permission to perform this operation")
	case errors.Is(err, deletion.ErrDisabled):
		response.Forbidden(w, r, "deletion requests are disabled")
	case errors.Is(err, deletion.ErrMediaDeletionFailed):
		response.ServiceUnavailable(w, r, "the media server rejected the deletion; the request remains approved")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
