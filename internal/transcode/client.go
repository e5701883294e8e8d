// Package transcode talks to the managed video-processing service that
// optimizes stored files for streaming, selects thumbnails, and serves
// playback URLs.
package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vidpress/internal/config"
)

const userAgent = "vidpress/0.1.0"

// ErrNotConfigured indicates the transcoder base URL is missing.
var ErrNotConfigured = errors.New("transcode: base URL not configured")

// Config carries client construction parameters.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Client is an HTTP client for the video-processing service.
type Client struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
}

// New creates a transcoder client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("transcode: invalid base URL %q", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: parsed, apiKey: cfg.APIKey, client: client}, nil
}

// NewFromConfig builds the client from the application configuration.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	timeout := time.Duration(cfg.Transcoder.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return New(Config{
		BaseURL:    cfg.Transcoder.BaseURL,
		APIKey:     cfg.Transcoder.APIKey,
		HTTPClient: &http.Client{Timeout: timeout},
	})
}

// Ack acknowledges an optimize request. Processing continues asynchronously
// on the service side.
type Ack struct {
	StreamAssetID string `json:"stream_asset_id"`
	Accepted      bool   `json:"accepted"`
}

// RequestOptimize asks the service to optimize the stored object for
// streaming. The call returns once the request is acknowledged; it never
// waits for processing to finish.
func (c *Client) RequestOptimize(ctx context.Context, storageKey, contentType string) (*Ack, error) {
	body := map[string]string{
		"storage_key":  storageKey,
		"content_type": contentType,
	}
	var ack Ack
	if err := c.do(ctx, http.MethodPost, "/v1/optimize", body, &ack); err != nil {
		return nil, err
	}
	if ack.StreamAssetID == "" {
		return nil, errors.New("transcode: optimize response missing stream asset id")
	}
	return &ack, nil
}

// SetThumbnailTimestamp instructs the service to cut the thumbnail at the
// given offset in seconds.
func (c *Client) SetThumbnailTimestamp(ctx context.Context, streamAssetID string, seconds float64) error {
	body := map[string]any{"timestamp_seconds": seconds}
	path := fmt.Sprintf("/v1/assets/%s/thumbnail/timestamp", url.PathEscape(streamAssetID))
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// SetThumbnailImage points the asset's thumbnail at a caller-supplied image.
func (c *Client) SetThumbnailImage(ctx context.Context, streamAssetID, imageURL string) error {
	body := map[string]string{"image_url": imageURL}
	path := fmt.Sprintf("/v1/assets/%s/thumbnail/image", url.PathEscape(streamAssetID))
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// ResolvePlaybackURL asks the service for a currently valid playback URL.
func (c *Client) ResolvePlaybackURL(ctx context.Context, streamAssetID string) (string, error) {
	var resp struct {
		PlaybackURL string `json:"playback_url"`
	}
	path := fmt.Sprintf("/v1/assets/%s/playback", url.PathEscape(streamAssetID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.PlaybackURL, nil
}

// DefaultThumbnailURL returns the service's default thumbnail location for an
// asset. No network call is made.
func (c *Client) DefaultThumbnailURL(streamAssetID string) string {
	return c.baseURL.JoinPath("v1", "assets", streamAssetID, "thumbnail.jpg").String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("transcode: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL.String() + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("transcode: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("transcode: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("transcode: %s %s returned %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transcode: decode response: %w", err)
	}
	return nil
}
