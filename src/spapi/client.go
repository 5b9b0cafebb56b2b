package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/username/sellersync/backend/src/logger"
)

const (
	defaultRateLimitPerSec = 2
	defaultRateLimitBurst  = 4
)

// Client is the authenticated marketplace API client. Every call fetches a
// bearer token, signs the request and respects a shared outbound rate limit
// so concurrent orchestrators cannot exceed the platform's throttling.
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
	tokens     TokenSource
	signer     *Signer
	limiter    *rate.Limiter

	// sleep is the cancellable delay used between poll attempts; tests
	// replace it to observe the backoff curve without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(endpoint string, tokens TokenSource, signer *Signer, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("spapi: invalid endpoint %q: %w", endpoint, errOrInvalid(err))
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   u,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		signer:     signer,
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimitPerSec), defaultRateLimitBurst),
		sleep:      sleepWithContext,
	}, nil
}

func errOrInvalid(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("missing host")
}

// call performs one signed request. A non-2xx response surfaces as a
// RemoteRequestError carrying the raw body.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("spapi: encoding request payload: %w", err)
		}
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	u := *c.endpoint
	u.Path = path
	if query != nil {
		u.RawQuery = CanonicalQuery(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("spapi: building request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.signer.Sign(req, body, token); err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("spapi: reading response for %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.L.Warn("Marketplace API request failed",
			"method", method, "path", path, "status", resp.StatusCode)
		return &RemoteRequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("spapi: decoding response for %s %s: %w", method, path, err)
		}
	}
	return nil
}

// sleepWithContext blocks for delay or until the context is cancelled,
// whichever comes first.
func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
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
