package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/apperr"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/logger"
)

const (
	defaultTimeout  = 30 * time.Second
	maxAttempts     = 3
	initialInterval = 1 * time.Second
	maxBodyInError  = 2048
)

// retryableStatuses are the HTTP statuses treated as transient. Everything
// else in the 4xx/5xx range fails the request immediately.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Response carries the status and fully read body of a completed request.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client wraps http.Client with bounded retries. Request bodies are passed as
// byte slices so every retry can resend the same payload.
type Client struct {
	http *http.Client
}

// New returns a Client with the given timeout per attempt. A zero timeout
// falls back to the default.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Do issues the request, retrying up to maxAttempts times on network errors
// and retryable statuses with exponential waits. Non-retryable error statuses
// return an apperr.FatalError at once; exhausted retries return an
// apperr.TransientError wrapping the last failure.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (*Response, error) {
	op := fmt.Sprintf("%s %s", method, url)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = 1 * time.Minute

	var attempts int
	var lastErr error

	operation := func() (*Response, error) {
		attempts++
		resp, err := c.attempt(ctx, method, url, body, headers)
		if err != nil {
			lastErr = err
			logger.Warn("Request attempt failed",
				zap.String("op", op),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			return nil, err
		}
		if resp.StatusCode >= 400 {
			if retryableStatuses[resp.StatusCode] {
				lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(resp.Body))
				logger.Warn("Request attempt got retryable status",
					zap.String("op", op),
					zap.Int("attempt", attempts),
					zap.Int("status", resp.StatusCode),
				)
				return nil, lastErr
			}
			return nil, backoff.Permanent(&apperr.FatalError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Body:       truncate(resp.Body),
			})
		}
		return resp, nil
	}

	resp, err := backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxAttempts-1), ctx))
	if err != nil {
		if apperr.IsFatal(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &apperr.TransientError{Op: op, Attempts: attempts, Err: lastErr}
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		// The request can never be built, so the taxonomy must say fatal.
		return nil, backoff.Permanent(&apperr.FatalError{
			Op:  fmt.Sprintf("%s %s", method, url),
			Err: fmt.Errorf("build request: %w", err),
		})
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

func truncate(body []byte) string {
	if len(body) > maxBodyInError {
		return string(body[:maxBodyInError]) + "..."
	}
	return string(body)
}
