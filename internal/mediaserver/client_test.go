package mediaserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelhaven/reelhaven/internal/mediaserver"
)

func newClient(t *testing.T, baseURL string) *mediaserver.Client {
	t.Helper()
	return mediaserver.NewClient(mediaserver.ClientConfig{
		BaseURL: baseURL,
		APIKey:  "test-api-key",
		Logger:  zerolog.Nop(),
	})
}

func TestClient_DeleteMedia(t *testing.T) {
	var gotMethod, gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.DeleteMedia(context.Background(), "media-42", "movie")
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/v1/library/movie/media-42", gotPath)
	assert.Equal(t, "test-api-key", gotKey)
}

func TestClient_DeleteMedia_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.DeleteMedia(context.Background(), "gone", "tv")
	assert.ErrorIs(t, err, mediaserver.ErrMediaNotFound)
}

func TestClient_DeleteMedia_ClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.DeleteMedia(context.Background(), "media-42", "movie")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_DeleteMedia_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.DeleteMedia(context.Background(), "media-42", "movie")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DeleteMedia_EscapesPathSegments(t *testing.T) {
	var gotEscaped string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEscaped = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	require.NoError(t, client.DeleteMedia(context.Background(), "media/42", "movie"))
	assert.Equal(t, "/api/v1/library/movie/media%2F42", gotEscaped)
}
