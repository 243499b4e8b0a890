package submit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// Config contains submission client configuration.
type Config struct {
	Endpoint     string
	APIKey       string
	RedirectBase string
	Timeout      time.Duration
	MaxRetries   int
	BaseDelay    time.Duration
	UserAgent    string
}

// Client delivers submissions to the scoring endpoint. The retry loop is
// cooperative: each attempt fully completes before the next is scheduled,
// and an abort flag is checked before every retry delay so CancelAll can
// stop a retrying submission without interrupting an in-flight attempt.
type Client struct {
	config     Config
	httpClient *http.Client
	backoff    Backoff
	logger     *slog.Logger
	aborted    atomic.Bool

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// ClientStats summarizes delivery behavior for the monitoring surface.
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// NewClient creates a submission client.
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "scorespoken/1.0"
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		backoff:    NewBackoff(config.BaseDelay),
		logger:     logger,
	}, nil
}

// Submit validates and delivers a request, retrying retryable failures with
// exponential backoff up to the retry budget. The receipt always carries
// the ordered attempt record; Result and RedirectURL are set on success.
func (c *Client) Submit(ctx context.Context, req *Request) (*Receipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = c.config.Endpoint
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	maxRetries := req.MaxRetries
	if maxRetries < 0 {
		maxRetries = c.config.MaxRetries
	}
	backoff := c.backoff
	if req.BaseDelay > 0 {
		backoff = NewBackoff(req.BaseDelay)
	}

	c.incrementTotalRequests()
	startTime := time.Now()
	receipt := &Receipt{}
	var lastErr *scoreerr.Error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if c.aborted.Load() {
				// CancelAll was invoked: the finished attempt stands but
				// no further retries are scheduled.
				break
			}
			delay := backoff.Delay(attempt - 1)
			c.logger.Debug("Retrying submission",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				c.incrementFailedRequests()
				return receipt, scoreerr.Wrap(scoreerr.CodeTimeout,
					"submission cancelled while waiting to retry", true, ctx.Err())
			}
			c.incrementTotalRetries()
		}

		attemptStart := time.Now()
		result, serr := c.doAttempt(ctx, endpoint, timeout, req)
		elapsed := time.Since(attemptStart)

		if serr == nil {
			receipt.Attempts = append(receipt.Attempts, Attempt{
				Index:   attempt,
				Outcome: OutcomeSuccess,
				Elapsed: elapsed,
			})
			receipt.Result = result

			if c.config.RedirectBase != "" {
				locator, err := RedirectURL(c.config.RedirectBase, result, req.Questions)
				if err != nil {
					c.logger.Warn("Failed to build redirect locator", slog.String("error", err.Error()))
				} else {
					receipt.RedirectURL = locator
				}
			}

			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			return receipt, nil
		}

		outcome := OutcomeFatalFailure
		if serr.Recoverable {
			outcome = OutcomeRetryableFailure
		}
		receipt.Attempts = append(receipt.Attempts, Attempt{
			Index:   attempt,
			Outcome: outcome,
			Elapsed: elapsed,
			Err:     serr,
		})
		lastErr = serr

		if !serr.Recoverable {
			break
		}
	}

	c.incrementFailedRequests()
	return receipt, fmt.Errorf("submission failed after %d attempts: %w",
		len(receipt.Attempts), lastErr)
}

// doAttempt performs one HTTP round trip and classifies its outcome.
func (c *Client) doAttempt(ctx context.Context, endpoint string, timeout time.Duration, req *Request) (*Result, *scoreerr.Error) {
	body, contentType, err := buildMultipart(req)
	if err != nil {
		return nil, scoreerr.Wrap(scoreerr.CodeValidation,
			"failed to build multipart payload", false, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, scoreerr.Wrap(scoreerr.CodeValidation,
			"failed to create HTTP request", false, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, scoreerr.Wrap(scoreerr.CodeNetwork,
			"failed to read response body", true, err)
	}

	if serr := classifyStatus(resp.StatusCode, respBody); serr != nil {
		return nil, serr
	}

	result, err := parseResult(respBody)
	if err != nil {
		var serr *scoreerr.Error
		if e, ok := err.(*scoreerr.Error); ok {
			serr = e
		} else {
			serr = scoreerr.Wrap(scoreerr.CodeProtocol, "malformed success response", false, err)
		}
		return nil, serr
	}
	return result, nil
}

// Abort marks the client so no further retries are scheduled. In-flight
// attempts run to completion; only the waits between attempts are skipped.
func (c *Client) Abort() {
	c.aborted.Store(true)
}

func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}
	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
	}
}
