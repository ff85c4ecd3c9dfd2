// Package insights generates model-written dataset summaries through the
// Gemini REST API and caches them in the catalog keyed by prompt hash.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	perrors "github.com/plotforge/plotforge/internal/errors"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client calls the Gemini generateContent endpoint with retry and backoff.
type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	model            string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// ClientOptions configures a Client. Zero values fall back to defaults.
type ClientOptions struct {
	APIKey    string
	Model     string
	BaseURL   string // overridden in tests
	Timeout   time.Duration
	RetryMax  int
	RetryBase time.Duration
	RetryCeil time.Duration
}

// NewClient returns a Gemini client with the given options applied over
// default timeouts and retry strategy.
func NewClient(opts ClientOptions) *Client {
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	if opts.RetryCeil <= 0 {
		opts.RetryCeil = 4 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: opts.Timeout},
		apiKey:           opts.APIKey,
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		model:            opts.Model,
		retryMaxAttempts: opts.RetryMax,
		retryBaseDelay:   opts.RetryBase,
		retryMaxDelay:    opts.RetryCeil,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type generateResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
}

// APIError represents a structured Gemini error response.
type APIError struct {
	StatusCode int
	Status     string // e.g. RESOURCE_EXHAUSTED
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		if e.Status != "" {
			return fmt.Sprintf("gemini: status=%d %s: %s", e.StatusCode, e.Status, e.Message)
		}
		return fmt.Sprintf("gemini: status=%d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini: status=%d", e.StatusCode)
}

// Generate sends the prompt to the model and returns the first candidate's
// text. Retries 429 and 5xx responses with exponential backoff and jitter,
// honoring Retry-After when the server provides one.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", perrors.NewInsightsError(perrors.CodeInsightsUnavailable,
			"no Gemini API key configured", nil)
	}
	payload, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []contentPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{Temperature: 0.4},
	})
	if err != nil {
		return "", fmt.Errorf("insights: marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)

	backoff := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("insights: build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isRetryableNetErr(err) && attempt < c.retryMaxAttempts {
				lastErr = err
				time.Sleep(c.capDelay(withJitter(backoff)))
				backoff *= 2
				continue
			}
			return "", perrors.NewInsightsError(perrors.CodeInsightsUnavailable,
				"Gemini API unreachable", err)
		}

		text, retryIn, err := c.handleResponse(resp)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if retryIn < 0 || attempt >= c.retryMaxAttempts {
			break
		}
		if retryIn == 0 {
			retryIn = c.capDelay(withJitter(backoff))
			backoff *= 2
		}
		time.Sleep(retryIn)
	}
	return "", c.classify(lastErr)
}

// handleResponse consumes one HTTP response. It returns the candidate text on
// success, or an error plus a retry hint: -1 not retryable, 0 retryable with
// backoff, >0 retryable after that exact delay.
func (c *Client) handleResponse(resp *http.Response) (string, time.Duration, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var raw struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &raw) == nil {
			apiErr.Message = raw.Error.Message
			apiErr.Status = raw.Error.Status
		}

		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := parseRetryAfterSeconds(ra); err == nil && secs > 0 {
					return "", time.Duration(secs) * time.Second, apiErr
				}
			}
			return "", 0, apiErr
		}
		return "", -1, apiErr
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", -1, fmt.Errorf("insights: decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", -1, fmt.Errorf("insights: empty response from model")
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), -1, nil
}

// classify maps a raw API or transport error to a structured insights error.
func (c *Client) classify(err error) error {
	if err == nil {
		return perrors.NewInsightsError(perrors.CodeInsightsUnavailable,
			"Gemini API request failed", nil)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return perrors.NewInsightsError(perrors.CodeInsightsAuth,
				"Gemini API rejected the configured key", apiErr)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return perrors.NewInsightsError(perrors.CodeInsightsRateLimited,
				"Gemini API rate limit exceeded", apiErr)
		}
	}
	return perrors.NewInsightsError(perrors.CodeInsightsUnavailable,
		"Gemini API request failed", err)
}

func (c *Client) capDelay(d time.Duration) time.Duration {
	if c.retryMaxDelay > 0 && d > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return d
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

// parseRetryAfterSeconds interprets a Retry-After header value as seconds or
// an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
