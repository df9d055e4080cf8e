package jobsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"applyq/internal/textutil"
)

const (
	defaultHTTPTimeout    = 2 * time.Minute
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Filters captures the request parameters for one search run. They are echoed
// verbatim onto the RunRecord for audit.
type Filters struct {
	DatePosted string `json:"date_posted"`
	NumPages   int    `json:"num_pages"`
	MinScore   int    `json:"min_score"`
	SortBy     string `json:"sort_by"`
}

// Map returns the filters as the opaque echo stored on a run record.
func (f Filters) Map() map[string]any {
	return map[string]any{
		"date_posted": f.DatePosted,
		"num_pages":   f.NumPages,
		"min_score":   f.MinScore,
		"sort_by":     f.SortBy,
	}
}

// Candidate is one scored posting returned by the search collaborator.
type Candidate struct {
	Title           string  `json:"title"`
	Company         string  `json:"company"`
	Location        string  `json:"location"`
	JobURL          string  `json:"job_url"`
	Description     string  `json:"description"`
	FitScore        float64 `json:"fit_score"`
	Recommendation  string  `json:"recommendation"`
	Publisher       string  `json:"job_publisher"`
	PostedDaysAgo   *int    `json:"posted_days_ago"`
	DescriptionHash string  `json:"description_hash"`
}

// Searcher is the narrow contract the ingestion orchestrator consumes.
type Searcher interface {
	Search(ctx context.Context, filters Filters) ([]Candidate, error)
}

// Config captures the runtime settings required to talk to the search service.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client calls the external search-and-score service over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
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

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a search client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type searchRequest struct {
	DatePosted string `json:"date_posted"`
	NumPages   int    `json:"num_pages"`
	MinScore   int    `json:"min_score"`
	SortBy     string `json:"sort_by"`
}

type searchResponse struct {
	Jobs  []Candidate `json:"jobs"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("search request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Search invokes the collaborator and returns the scored candidate list.
// Candidates missing a description hash get one computed locally so dedup
// never depends on the remote service.
func (c *Client) Search(ctx context.Context, filters Filters) ([]Candidate, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.New("search: api key required")
	}
	if c.cfg.BaseURL == "" {
		return nil, errors.New("search: base url required")
	}

	payload := searchRequest{
		DatePosted: filters.DatePosted,
		NumPages:   filters.NumPages,
		MinScore:   filters.MinScore,
		SortBy:     filters.SortBy,
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts(); attempt++ {
		candidates, err := c.searchOnce(ctx, payload)
		if err == nil {
			for i := range candidates {
				candidates[i].Title = textutil.CleanTitle(candidates[i].Title)
				candidates[i].Company = textutil.CleanTitle(candidates[i].Company)
				if candidates[i].DescriptionHash == "" {
					candidates[i].DescriptionHash = textutil.DescriptionHash(candidates[i].Description)
				}
			}
			return candidates, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.retryAttempts() {
			return nil, err
		}
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) searchOnce(ctx context.Context, payload searchRequest) ([]Candidate, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("search: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("search: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var decoded searchResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, fmt.Errorf("search: service error: %s", decoded.Error.Message)
	}
	return decoded.Jobs, nil
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts > 0 {
		return c.retryMaxAttempts
	}
	return defaultRetryAttempts
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.retryBaseDelay << (attempt - 1)
	if delay > c.retryMaxDelay {
		delay = c.retryMaxDelay
	}
	return delay
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

func retryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	// Network-level failures are worth retrying; decode and validation
	// failures are not.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) &&
		strings.Contains(err.Error(), "send request")
}
