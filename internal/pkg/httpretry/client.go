// Package httpretry provides an HTTP client with bounded retry logic tuned
// for the Smartlead API: rate-limit responses back off on a growing schedule,
// gateway errors and network blips on short fixed waits.
package httpretry

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/smartlead-export/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with the Smartlead backoff policy:
//   - 429 Too Many Requests: wait (attempt+1) * rateLimitStep, retry
//   - 502 Bad Gateway: wait badGatewayWait, retry
//   - transient network error: wait networkWait, retry
//
// Any other status is returned to the caller unchanged. Exhausting the
// attempt ceiling is a terminal error for that call.
type RetryClient struct {
	client         HTTPDoer
	maxAttempts    int
	rateLimitStep  time.Duration
	badGatewayWait time.Duration
	networkWait    time.Duration

	// sleep is swappable so tests do not sit through real backoff waits.
	sleep func(time.Duration)
}

// NewRetryClient creates a RetryClient around the given HTTPDoer.
// If client is nil, a default http.Client with a 60s timeout is used.
// maxAttempts is the total number of attempts including the first (default 5).
func NewRetryClient(client HTTPDoer, maxAttempts int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RetryClient{
		client:         client,
		maxAttempts:    maxAttempts,
		rateLimitStep:  5 * time.Second,
		badGatewayWait: 3 * time.Second,
		networkWait:    2 * time.Second,
		sleep:          time.Sleep,
	}
}

// SetSleep replaces the sleep function (useful for testing).
func (rc *RetryClient) SetSleep(fn func(time.Duration)) { rc.sleep = fn }

// Do executes the HTTP request with the retry policy described on RetryClient.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < rc.maxAttempts; attempt++ {
		if req.Context().Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, req.Context().Err()
		}

		// Reset request body for retried attempts.
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("httpretry: failed to reset request body: %w", err)
			}
			req.Body = body
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			// Context cancellation is not retryable.
			if req.Context().Err() != nil {
				return nil, err
			}
			lastErr = err
			if attempt == rc.maxAttempts-1 {
				break
			}
			logger.Warn("httpretry: network error, retrying",
				"method", req.Method, "host", req.URL.Host, "attempt", attempt+1, "wait", rc.networkWait)
			rc.wait(req, rc.networkWait)
			continue
		}

		var delay time.Duration
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			delay = time.Duration(attempt+1) * rc.rateLimitStep
		case http.StatusBadGateway:
			delay = rc.badGatewayWait
		default:
			// Success or a non-retryable status; the caller inspects it.
			return resp, nil
		}

		// Drain the body so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned status %d", resp.StatusCode)

		if attempt == rc.maxAttempts-1 {
			break
		}
		logger.Warn("httpretry: retryable status, backing off",
			"status", resp.StatusCode, "method", req.Method, "host", req.URL.Host,
			"attempt", attempt+1, "wait", delay)
		rc.wait(req, delay)
	}

	return nil, fmt.Errorf("httpretry: failed after %d attempts: %w", rc.maxAttempts, lastErr)
}

// wait sleeps for the given duration unless the request context ends first.
func (rc *RetryClient) wait(req *http.Request, d time.Duration) {
	done := req.Context().Done()
	if done == nil {
		rc.sleep(d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-done:
	}
}
