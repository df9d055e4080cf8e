package resumegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout   = 5 * time.Minute
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second

	resumeFileName = "resume.md"
	scoreFileName  = "score_report.json"
)

// Config captures the runtime settings for the LLM-backed generator.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	OutputDir      string
}

// Client generates tailored resume packages by driving an OpenAI-compatible
// chat completion endpoint and writing the artifacts under OutputDir.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryDelay       time.Duration
	sleeper          func(time.Duration)
	now              func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a generator client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryDelay:       defaultRetryDelay,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var _ Generator = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type draftPayload struct {
	Resume      string  `json:"resume"`
	ResumeScore float64 `json:"resume_score"`
}

// Generate tailors a resume for the request's job, writes the artifacts into
// a per-job output folder, and returns its path with the draft score.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	if err := c.validate(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(req.Description) == "" {
		return Result{}, errors.New("generate: empty job description")
	}

	content, err := c.complete(ctx, tailorPrompt(req))
	if err != nil {
		return Result{}, err
	}

	draft, err := parseDraft(content)
	if err != nil {
		return Result{}, err
	}

	folder := filepath.Join(c.cfg.OutputDir, outputFolderName(req, c.now()))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return Result{}, fmt.Errorf("generate: create output folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(folder, resumeFileName), []byte(draft.Resume), 0o644); err != nil {
		return Result{}, fmt.Errorf("generate: write resume: %w", err)
	}
	report, err := json.MarshalIndent(map[string]any{
		"job_id":       req.JobID,
		"tier":         string(req.Tier),
		"resume_score": draft.ResumeScore,
		"generated_at": c.now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("generate: marshal score report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(folder, scoreFileName), report, 0o644); err != nil {
		return Result{}, fmt.Errorf("generate: write score report: %w", err)
	}

	return Result{OutputFolder: folder, ResumeScore: draft.ResumeScore}, nil
}

// CoverLetter drafts a cover letter for a job that already has a tailored
// resume and writes it next to the other artifacts when OutputDir is set.
func (c *Client) CoverLetter(ctx context.Context, req Request) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	content, err := c.complete(ctx, coverLetterPrompt(req))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// OutreachMessage drafts a short recruiter outreach message for the job.
func (c *Client) OutreachMessage(ctx context.Context, req Request) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	content, err := c.complete(ctx, outreachPrompt(req))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) validate() error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errors.New("generator: api key required")
	}
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return errors.New("generator: base url required")
	}
	if strings.TrimSpace(c.cfg.Model) == "" {
		return errors.New("generator: model required")
	}
	return nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("generator: marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		content, err := c.completeOnce(ctx, endpoint, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		var statusErr *httpStatusError
		retry := errors.As(err, &statusErr) &&
			(statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500)
		if !retry || attempt == c.retryMaxAttempts {
			return "", err
		}
		if err := c.sleep(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("generator request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) completeOnce(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("generator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("generator: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("generator: decode response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("generator: service error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("generator: response contained no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if c.sleeper != nil {
		c.sleeper(delay)
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseDraft extracts the JSON draft from the model response, tolerating
// markdown code fences around the payload.
func parseDraft(content string) (draftPayload, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	var draft draftPayload
	if err := json.Unmarshal([]byte(trimmed), &draft); err != nil {
		return draftPayload{}, fmt.Errorf("generator: parse draft: %w", err)
	}
	if strings.TrimSpace(draft.Resume) == "" {
		return draftPayload{}, errors.New("generator: draft missing resume content")
	}
	return draft, nil
}

// outputFolderName builds a stable, filesystem-safe folder name for one job.
func outputFolderName(req Request, now time.Time) string {
	slug := func(value string) string {
		var b strings.Builder
		for _, r := range strings.ToLower(strings.TrimSpace(value)) {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				b.WriteRune(r)
			case r == ' ' || r == '-' || r == '_':
				b.WriteByte('-')
			}
		}
		return strings.Trim(b.String(), "-")
	}
	company := slug(req.Company)
	if company == "" {
		company = "unknown"
	}
	title := slug(req.Title)
	if title == "" {
		title = "role"
	}
	return fmt.Sprintf("%s_%s_%s", company, title, now.UTC().Format("20060102-150405"))
}
