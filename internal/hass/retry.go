package hass

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = 300 * time.Millisecond
)

// Statuses retried with backoff. When the budget runs out the last response
// is handed back so the caller reports that status.
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

type retryPolicy struct {
	maxRetries int
	base       time.Duration
}

// backoff returns base, 2*base, 4*base... for attempts 1, 2, 3...
func (p retryPolicy) backoff(attempt int) time.Duration {
	return p.base * time.Duration(1<<(attempt-1))
}

// doWithRetry executes an HTTP request with exponential backoff retry
// for transport failures and the statuses in retryStatuses.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), policy retryPolicy, logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= policy.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := policy.backoff(attempt)
			logger.Debug("retrying request", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			if attempt < policy.maxRetries {
				logger.Debug("request failed, will retry", "error", err)
				continue
			}
			return nil, err
		}

		if retryStatuses[resp.StatusCode] && attempt < policy.maxRetries {
			// Drain so the connection goes back to the pool.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			logger.Debug("transient status, will retry", "status", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}
