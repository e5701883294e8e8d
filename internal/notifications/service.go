// Package notifications delivers publish lifecycle alerts through ntfy when a
// topic is configured, and silently does nothing otherwise.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidpress/internal/config"
)

const userAgent = "vidpress/0.1.0"

// Service defines the notification surface exposed to the publish pipeline.
type Service interface {
	NotifyPublishStarted(ctx context.Context, title string) error
	NotifyPublishCompleted(ctx context.Context, title, playbackURL string) error
	NotifyPublishFailed(ctx context.Context, title, step, reason string) error
	NotifyTranscriptionReady(ctx context.Context, title string, speakers int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyPublishStarted(ctx context.Context, title string) error {
	data := payload{
		title:   "Vidpress - Publish Started",
		message: fmt.Sprintf("Publishing: %s", strings.TrimSpace(title)),
		tags:    []string{"vidpress", "publish", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublishCompleted(ctx context.Context, title, playbackURL string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Live: %s", title)
	if playbackURL = strings.TrimSpace(playbackURL); playbackURL != "" {
		message = fmt.Sprintf("%s\n%s", message, playbackURL)
	}
	data := payload{
		title:    "Vidpress - Published",
		message:  message,
		tags:     []string{"vidpress", "publish", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublishFailed(ctx context.Context, title, step, reason string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "untitled"
	}
	data := payload{
		title:    "Vidpress - Publish Failed",
		message:  fmt.Sprintf("Failed at %s: %s\n%s", step, title, strings.TrimSpace(reason)),
		tags:     []string{"vidpress", "publish", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranscriptionReady(ctx context.Context, title string, speakers int) error {
	data := payload{
		title:   "Vidpress - Transcript Ready",
		message: fmt.Sprintf("Transcript ready for %s (%d speakers)", strings.TrimSpace(title), speakers),
		tags:    []string{"vidpress", "transcribe", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Vidpress - Test",
		message:  "Notification system test",
		tags:     []string{"vidpress", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyPublishStarted(context.Context, string) error               { return nil }
func (noopService) NotifyPublishCompleted(context.Context, string, string) error     { return nil }
func (noopService) NotifyPublishFailed(context.Context, string, string, string) error { return nil }
func (noopService) NotifyTranscriptionReady(context.Context, string, int) error      { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
