package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelhaven/reelhaven/internal/api"
	"github.com/reelhaven/reelhaven/internal/api/middleware"
	"github.com/reelhaven/reelhaven/internal/api/models"
	"github.com/reelhaven/reelhaven/internal/auth"
	"github.com/reelhaven/reelhaven/internal/deletion"
	"github.com/reelhaven/reelhaven/internal/settings"
	"github.com/reelhaven/reelhaven/internal/worker"
)

// testJWTService creates a JWT service for generating test tokens.
func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.reelhaven.test",
		Audience:   "reelhaven-api",
	})
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return newTestRouterWithReadyCheck(t, nil)
}

func newTestRouterWithReadyCheck(t *testing.T, readyCheck func(ctx context.Context) error) http.Handler {
	t.Helper()

	logger := zerolog.New(io.Discard)

	settingsService := settings.NewService(settings.ServiceConfig{
		Repository: settings.NewInMemoryRepository(),
		Logger:     logger,
	})

	repo := deletion.NewInMemoryRepository()
	deletionService := deletion.NewService(deletion.ServiceConfig{
		Repository:  repo,
		Settings:    settingsService,
		Logger:      logger,
		Permissions: middleware.ClaimsChecker{},
	})

	sweeper := worker.NewSweeper(worker.SweeperConfig{
		Repository: repo,
		Resolver:   deletionService,
		Settings:   settingsService,
		Logger:     logger,
	})

	return api.NewRouter(api.RouterConfig{
		Version:         "test",
		BuildTime:       "2026-01-01T00:00:00Z",
		Logger:          logger,
		JWTService:      testJWTService(),
		DeletionService: deletionService,
		SettingsService: settingsService,
		Sweeper:         sweeper,
		ReadyCheck:      readyCheck,
	})
}

// addAuthHeader adds a valid Bearer token for a regular user.
func addAuthHeader(t *testing.T, req *http.Request) {
	t.Helper()
	token, _, err := testJWTService().GenerateAccessToken("user-router-test", false)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

// addAdminAuthHeader adds a valid Bearer token carrying the admin claim.
func addAdminAuthHeader(t *testing.T, req *http.Request) {
	t.Helper()
	token, _, err := testJWTService().GenerateAccessToken("admin-router-test", true)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

// createRequest opens a deletion request through the API and returns it.
func createRequest(t *testing.T, router http.Handler, mediaID string) *models.DeletionRequestResponse {
	t.Helper()

	input := models.CreateDeletionRequestInput{
		MediaID:   mediaID,
		MediaType: "movie",
		TMDBID:    550,
		Title:     "Fight Club",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/deletion-requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.DeletionRequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.NotEmpty(t, health.Time)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ReadinessCheck_NotReady(t *testing.T) {
	router := newTestRouterWithReadyCheck(t, func(context.Context) error {
		return errors.New("database unreachable")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_DeletionRequests_RequireAuth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/deletion-requests", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_CreateDeletionRequest(t *testing.T) {
	router := newTestRouter(t)

	input := models.CreateDeletionRequestInput{
		MediaID:   "media-1",
		MediaType: "movie",
		TMDBID:    550,
		Title:     "Fight Club",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/deletion-requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("Location"))

	var resp models.DeletionRequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.ID, "del_")
	assert.Equal(t, "voting", resp.Status)
	assert.Equal(t, "user-router-test", resp.RequestedBy)
	assert.False(t, resp.VotingEndsAt.IsZero())
}

func TestRouter_CreateDeletionRequest_ValidationError(t *testing.T) {
	router := newTestRouter(t)

	// Missing mediaId
	input := models.CreateDeletionRequestInput{
		MediaType: "movie",
		TMDBID:    550,
		Title:     "Fight Club",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/deletion-requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.NotEmpty(t, problem.TraceID)
}

func TestRouter_CreateDeletionRequest_Duplicate(t *testing.T) {
	router := newTestRouter(t)

	first := createRequest(t, router, "media-dup")

	input := models.CreateDeletionRequestInput{
		MediaID:   "media-dup",
		MediaType: "movie",
		TMDBID:    550,
		Title:     "Fight Club",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/deletion-requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), first.ID)
}

func TestRouter_GetDeletionRequest(t *testing.T) {
	router := newTestRouter(t)
	created := createRequest(t, router, "media-get")

	req := httptest.NewRequest(http.MethodGet, "/v1/deletion-requests/"+created.ID, http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.DeletionRequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
}

func TestRouter_GetDeletionRequest_NotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/deletion-requests/del_missing", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_VoteLifecycle(t *testing.T) {
	router := newTestRouter(t)
	created := createRequest(t, router, "media-vote")

	// Cast a vote in favor
	voteBody, _ := json.Marshal(models.VoteInput{Vote: boolPtr(true)})
	req := httptest.NewRequest(http.MethodPost, "/v1/deletion-requests/"+created.ID+"/votes", bytes.NewReader(voteBody))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var afterVote models.DeletionRequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &afterVote))
	assert.Equal(t, 1, afterVote.VotesFor)
	assert.Equal(t, 0, afterVote.VotesAgainst)
	assert.Equal(t, 1, afterVote.TotalVotes)

	// Read the vote back
	req = httptest.NewRequest(http.MethodGet, "/v1/deletion-requests/"+created.ID+"/votes/me", http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var vote models.VoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vote))
	assert.True(t, vote.Vote)
	assert.Equal(t, created.ID, vote.RequestID)

	// Retract it
	req = httptest.NewRequest(http.MethodDelete, "/v1/deletion-requests/"+created.ID+"/votes/me", http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The vote is gone
	req = httptest.NewRequest(http.MethodGet, "/v1/deletion-requests/"+created.ID+"/votes/me", http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Vote_MissingValue(t *testing.T) {
	router := newTestRouter(t)
	created := createRequest(t, router, "media-novote")

	req := httptest.NewRequest(http.MethodPost, "/v1/deletion-requests/"+created.ID+"/votes", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "vote")
}

func TestRouter_CancelDeletionRequest(t *testing.T) {
	router := newTestRouter(t)
	created := createRequest(t, router, "media-cancel")

	req := httptest.NewRequest(http.MethodPost, "/v1/deletion-requests/"+created.ID+"/cancel", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.DeletionRequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Status)
}

func TestRouter_Admin_RequiresAdminClaim(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/settings/deletion", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "admin access required")
}

func TestRouter_Admin_GetDeletionSettings(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/settings/deletion", http.NoBody)
	addAdminAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.DeletionSettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Enabled)
	assert.Equal(t, 48.0, resp.VotingDurationHours)
	assert.Equal(t, 60.0, resp.RequiredVotePercentage)
}

func TestRouter_Admin_UpdateDeletionSettings(t *testing.T) {
	router := newTestRouter(t)

	input := models.UpdateDeletionSettingsInput{
		VotingDurationHours:    float64Ptr(72),
		RequiredVotePercentage: float64Ptr(75),
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPut, "/v1/admin/settings/deletion", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAdminAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.DeletionSettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 72.0, resp.VotingDurationHours)
	assert.Equal(t, 75.0, resp.RequiredVotePercentage)
}

func TestRouter_Admin_SweepStatus(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/sweep", http.NoBody)
	addAdminAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.SweepStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Running)
}

func TestRouter_Admin_TriggerSweep(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/sweep", http.NoBody)
	addAdminAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.SweepResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Expired)
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func boolPtr(b bool) *bool { return &b }

func float64Ptr(f float64) *float64 { return &f }
