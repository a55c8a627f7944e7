package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"uptend/internal/config"
	"uptend/internal/domain"

	"golang.org/x/time/rate"
)

// Client is the outbound HTTP client for the UpTend API. It attaches the
// stored bearer token to every call and optionally paces requests so a
// queue replay burst does not hammer the server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     domain.TokenSource
	limiter    *rate.Limiter
}

// NewClient constructs a client from config. A zero RateLimitRPS disables
// pacing.
func NewClient(cfg config.APIConfig, tokens domain.TokenSource) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 5
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		limiter:    limiter,
	}
}

// Do executes one API call. A returned error means the request never
// completed at the transport level; callers decide what an HTTP error
// status means.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(ctx, req)

	return c.httpClient.Do(req)
}

// Healthy reports whether the given probe path answers with any HTTP
// response. Used by the connectivity probe.
func (c *Client) Healthy(ctx context.Context, probePath string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(probePath), nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (c *Client) endpoint(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) addHeaders(ctx context.Context, req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token := c.tokens.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
