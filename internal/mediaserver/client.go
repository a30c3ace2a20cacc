// Package mediaserver provides the client for the external media server
// that owns the library files. The deletion engine only ever asks it to
// remove an item; everything else about media management lives there.
package mediaserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelhaven/reelhaven/internal/resilience"
)

// Errors returned by the media server client.
var (
	// ErrMediaNotFound means the media server does not know the item.
	ErrMediaNotFound = errors.New("media not found on media server")
)

// Deleter removes a media item from the library. Implemented by Client;
// the deletion engine depends on this interface so tests can stub it.
type Deleter interface {
	DeleteMedia(ctx context.Context, mediaID string, mediaType string) error
}

// ClientConfig holds configuration for the media server client.
type ClientConfig struct {
	// BaseURL is the media server API root, e.g. "http://jellyfin:8096".
	BaseURL string

	// APIKey authenticates requests via the X-Api-Key header.
	APIKey string

	// Timeout is the per-request timeout. Default: 30 seconds.
	Timeout time.Duration

	Logger zerolog.Logger
}

// Client calls the media server over HTTP with circuit breaker and retry
// protection.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new media server client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	clientCfg := resilience.DefaultClientConfig("mediaserver")
	clientCfg.Timeout = timeout

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: resilience.NewClient(clientCfg),
		logger:     cfg.Logger,
	}
}

// DeleteMedia asks the media server to remove a library item. The call is
// idempotent on the server side: deleting an already-removed item returns
// ErrMediaNotFound, which callers may treat as success.
func (c *Client) DeleteMedia(ctx context.Context, mediaID string, mediaType string) error {
	endpoint := fmt.Sprintf("%s/api/v1/library/%s/%s", c.baseURL, url.PathEscape(mediaType), url.PathEscape(mediaID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete media %s/%s: %w", mediaType, mediaID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug().
		Str("media_id", mediaID).
		Str("media_type", mediaType).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("media server delete call")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrMediaNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("delete media %s/%s: media server returned %d", mediaType, mediaID, resp.StatusCode)
	}
	return nil
}

// Ensure Client implements Deleter.
var _ Deleter = (*Client)(nil)
