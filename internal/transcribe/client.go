// Package transcribe submits asynchronous transcription jobs and polls them
// to a terminal state within a bounded attempt budget. Transcription is
// best-effort: no outcome here ever fails a publish.
package transcribe

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

// ErrNotConfigured indicates the transcription base URL is missing.
var ErrNotConfigured = errors.New("transcribe: base URL not configured")

// JobState mirrors the collaborator's job lifecycle.
type JobState string

const (
	StateProcessing JobState = "processing"
	StateReady      JobState = "ready"
	StateFailed     JobState = "failed"
)

// Job is the collaborator's view of one transcription request.
type Job struct {
	ID             string   `json:"id"`
	State          JobState `json:"state"`
	SpeakerCount   int      `json:"speaker_count"`
	TranscriptText string   `json:"transcript_text"`
	CaptionURL     string   `json:"caption_url"`
}

// Request describes one transcription submission.
type Request struct {
	MediaURL    string `json:"media_url"`
	Language    string `json:"language"`
	Diarization bool   `json:"diarization"`
	Captions    bool   `json:"captions"`
}

// Config carries client construction parameters.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Client is an HTTP client for the transcription service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a transcription client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("transcribe: invalid base URL %q", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: base, apiKey: cfg.APIKey, client: client}, nil
}

// NewFromConfig builds the client from the application configuration.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	return New(Config{
		BaseURL: cfg.Transcription.BaseURL,
		APIKey:  cfg.Transcription.APIKey,
	})
}

// Submit creates a transcription job for the given media URL.
func (c *Client) Submit(ctx context.Context, req Request) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, "/v1/transcriptions", req, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, errors.New("transcribe: submit response missing job id")
	}
	if job.State == "" {
		job.State = StateProcessing
	}
	return &job, nil
}

// Status fetches the current state of a transcription job.
func (c *Client) Status(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	path := "/v1/transcriptions/" + url.PathEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("transcribe: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("transcribe: build request: %w", err)
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
		return fmt.Errorf("transcribe: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("transcribe: %s %s returned %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transcribe: decode response: %w", err)
	}
	return nil
}
