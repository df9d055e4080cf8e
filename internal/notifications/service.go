package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"applyq/internal/config"
)

const userAgent = "ApplyQ/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifySearchStarted(ctx context.Context, runID string) error
	NotifySearchCompleted(ctx context.Context, runID string, found, admitted int) error
	NotifySearchFailed(ctx context.Context, runID, reason string) error
	NotifyGenerationCompleted(ctx context.Context, ready, failed int, duration time.Duration) error
	NotifyJobReady(ctx context.Context, title, company string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
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
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		search:     cfg.Notifications.Search,
		generation: cfg.Notifications.Generation,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	search     bool
	generation bool
	errors     bool
}

func (n *ntfyService) NotifySearchStarted(ctx context.Context, runID string) error {
	if !n.search {
		return nil
	}
	data := payload{
		title:   "ApplyQ - Search Started",
		message: fmt.Sprintf("Job search started (%s)", strings.TrimSpace(runID)),
		tags:    []string{"applyq", "search", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySearchCompleted(ctx context.Context, runID string, found, admitted int) error {
	if !n.search {
		return nil
	}
	data := payload{
		title:   "ApplyQ - Search Complete",
		message: fmt.Sprintf("Search %s finished: %d postings found, %d new", strings.TrimSpace(runID), found, admitted),
		tags:    []string{"applyq", "search", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySearchFailed(ctx context.Context, runID, reason string) error {
	if !n.search && !n.errors {
		return nil
	}
	data := payload{
		title:    "ApplyQ - Search Failed",
		message:  fmt.Sprintf("Search %s failed: %s", strings.TrimSpace(runID), strings.TrimSpace(reason)),
		tags:     []string{"applyq", "search", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationCompleted(ctx context.Context, ready, failed int, duration time.Duration) error {
	if !n.generation {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	var title, message string
	if failed == 0 {
		title = "ApplyQ - Batch Complete"
		message = fmt.Sprintf("Resume batch complete: %d ready in %s", ready, duration)
	} else {
		title = "ApplyQ - Batch Complete (with errors)"
		message = fmt.Sprintf("Resume batch complete: %d ready, %d failed in %s", ready, failed, duration)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"applyq", "generate", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobReady(ctx context.Context, title, company string) error {
	if !n.generation {
		return nil
	}
	data := payload{
		title:    "ApplyQ - Resume Ready",
		message:  fmt.Sprintf("Ready to apply: %s at %s", strings.TrimSpace(title), strings.TrimSpace(company)),
		tags:     []string{"applyq", "generate", "ready"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "ApplyQ - Error",
		message:  builder.String(),
		tags:     []string{"applyq", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "ApplyQ - Test",
		message:  "Notification system test",
		tags:     []string{"applyq", "test"},
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

func (noopService) NotifySearchStarted(context.Context, string) error                      { return nil }
func (noopService) NotifySearchCompleted(context.Context, string, int, int) error          { return nil }
func (noopService) NotifySearchFailed(context.Context, string, string) error               { return nil }
func (noopService) NotifyGenerationCompleted(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyJobReady(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error     { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
