// Package upstream is the HTTP client shared by the ingestion adapters.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/laws-africa/peachjam/internal/adapters/driven/blob"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// MaxRetries is the number of times a transient failure is retried.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries. It doubles each attempt.
	RetryDelay = time.Second

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 1024
)

// Config configures a Client.
type Config struct {
	// BaseURL is prepended to relative references.
	BaseURL string

	// Token authenticates requests. TokenType is the Authorization scheme,
	// "Token" by default.
	Token     string
	TokenType string

	// Rate is the proactive request rate per second.
	Rate float64

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// HTTPClient is the transport used under the token source. Optional.
	HTTPClient *http.Client
}

// Client fetches JSON and files from an upstream API.
type Client struct {
	http        *http.Client
	base        string
	rateLimiter *RateLimiter
	maxRetries  int
	retryDelay  time.Duration
}

// NewClient creates a client. A token is sent on every request.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: upstream base URL is required", domain.ErrInvalidInput)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", domain.ErrInvalidInput, err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = MaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = RetryDelay
	}
	if cfg.TokenType == "" {
		cfg.TokenType = "Token"
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: cfg.TokenType})
		hc = oauth2.NewClient(ctx, ts)
	}
	hc.Timeout = cfg.Timeout

	return &Client{
		http:        hc,
		base:        strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: NewRateLimiter(cfg.Rate),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

// Resolve turns a reference into an absolute URL. Absolute URLs are kept;
// anything else is appended to the base URL.
func (c *Client) Resolve(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return c.base + "/" + strings.TrimLeft(ref, "/")
}

// GetJSON fetches ref and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, ref string, query url.Values, out any) error {
	resp, err := c.get(ctx, withQuery(c.Resolve(ref), query))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("upstream: decoding %s: %w", ref, err)
	}
	return nil
}

// GetText fetches ref and returns the body as a string.
func (c *Client) GetText(ctx context.Context, ref string) (string, error) {
	resp, err := c.get(ctx, c.Resolve(ref))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", domain.ErrUpstreamUnavailable, ref, err)
	}
	return string(body), nil
}

// page is the paginated list envelope.
type page struct {
	Results []json.RawMessage `json:"results"`
	Next    string            `json:"next"`
}

// Each calls fn for every item of a paginated list, following "next" links
// in the body or the Link header.
func (c *Client) Each(ctx context.Context, ref string, query url.Values, fn func(json.RawMessage) error) error {
	next := withQuery(c.Resolve(ref), query)
	for next != "" {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := c.get(ctx, next)
		if err != nil {
			return err
		}
		var p page
		err = json.NewDecoder(resp.Body).Decode(&p)
		link := ParseNextLink(resp.Header.Get("Link"))
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("upstream: decoding %s: %w", next, err)
		}
		for _, item := range p.Results {
			if err := fn(item); err != nil {
				return err
			}
		}
		switch {
		case p.Next != "":
			next = c.Resolve(p.Next)
		case link != "":
			next = c.Resolve(link)
		default:
			next = ""
		}
	}
	return nil
}

// Download streams ref into a temp file. The caller must Release it.
// The returned MIME type comes from the response, without parameters.
func (c *Client) Download(ctx context.Context, ref string) (*blob.TempFile, string, error) {
	resp, err := c.get(ctx, c.Resolve(ref))
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	tmp, err := blob.SpoolTemp("", "peachjam-dl-*", resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: downloading %s: %w", domain.ErrUpstreamUnavailable, ref, err)
	}
	mt := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return tmp, strings.TrimSpace(mt), nil
}

// get issues a GET, retrying transient failures with exponential back-off.
// A non-nil response has a 2xx status and must be closed by the caller.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := c.try(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryable(err) || attempt >= c.maxRetries {
			return nil, err
		}
		lastErr = err

		delay := c.retryDelay << attempt
		var rl *RateLimitError
		if errors.As(err, &rl) && time.Until(rl.ResetAt) > delay {
			delay = time.Until(rl.ResetAt)
		}
		logger.Debug("upstream: retrying %s in %s: %v", rawURL, delay, lastErr)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) try(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json, */*")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrUpstreamUnavailable, rawURL, err)
	}
	if rlErr := c.rateLimiter.CheckRateLimit(resp); rlErr != nil {
		resp.Body.Close()
		return nil, rlErr
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg)), URL: rawURL}
}

func withQuery(rawURL string, query url.Values) string {
	if len(query) == 0 {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + query.Encode()
}
