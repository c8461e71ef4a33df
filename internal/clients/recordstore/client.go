// Package recordstore is the client for the hosted record store holding
// merchants and their daily revenue rows. The store throttles aggressively,
// so every request goes through a single worker that spaces calls out and
// retries once on 429.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	rateLimitDelay   = 200 * time.Millisecond
	requestQueueSize = 100
	pageSize         = 100
)

type requestJob struct {
	ctx      context.Context
	method   string
	path     string
	query    url.Values
	body     interface{}
	resultCh chan requestResult
}

type requestResult struct {
	data []byte
	err  error
}

// Client talks to the record store REST API.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	log          zerolog.Logger
	requestQueue chan requestJob
	stopChan     chan struct{}
	workerDone   chan struct{}
	once         sync.Once
}

// NewClient creates a record store client and starts its rate limiting
// worker. Call Close when done.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	c := &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log.With().Str("component", "recordstore").Logger(),
		requestQueue: make(chan requestJob, requestQueueSize),
		stopChan:     make(chan struct{}),
		workerDone:   make(chan struct{}),
	}

	go c.worker()

	return c
}

// Close gracefully shuts down the rate limiting worker.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.stopChan)
		close(c.requestQueue)
		<-c.workerDone
	})
}

// request queues one API call and waits for its result.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	resultCh := make(chan requestResult, 1)

	job := requestJob{
		ctx:      ctx,
		method:   method,
		path:     path,
		query:    query,
		body:     body,
		resultCh: resultCh,
	}

	select {
	case c.requestQueue <- job:
	case <-c.stopChan:
		return nil, fmt.Errorf("client is closed")
	default:
		return nil, fmt.Errorf("request queue is full")
	}

	select {
	case result := <-resultCh:
		return result.data, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// worker processes requests sequentially with rate limiting.
func (c *Client) worker() {
	defer close(c.workerDone)

	var lastRequestTime time.Time
	firstRequest := true

	processJob := func(job requestJob) {
		if !firstRequest {
			elapsed := time.Since(lastRequestTime)
			if elapsed < rateLimitDelay {
				time.Sleep(rateLimitDelay - elapsed)
			}
		}
		firstRequest = false

		var result requestResult
		result.data, result.err = c.doRequest(job.ctx, job.method, job.path, job.query, job.body)

		lastRequestTime = time.Now()

		job.resultCh <- result
	}

	for {
		select {
		case <-c.stopChan:
			for {
				select {
				case job, ok := <-c.requestQueue:
					if !ok {
						return
					}
					processJob(job)
				default:
					return
				}
			}
		case job, ok := <-c.requestQueue:
			if !ok {
				return
			}
			processJob(job)
		}
	}
}

// doRequest performs one HTTP call, retrying a single time when the store
// answers 429.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	data, err := c.doRequestOnce(ctx, method, path, query, body)
	if err == nil {
		return data, nil
	}

	var rle *rateLimitedError
	if !errors.As(err, &rle) {
		return nil, err
	}

	wait := rle.retryAfter
	if wait <= 0 {
		wait = time.Second
	}
	c.log.Warn().Dur("wait", wait).Str("path", path).Msg("rate limited, retrying once")

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.doRequestOnce(ctx, method, path, query, body)
}

type rateLimitedError struct {
	retryAfter time.Duration
}

func (e *rateLimitedError) Error() string { return "record store rate limit exceeded" }

func (c *Client) doRequestOnce(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var after time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				after = time.Duration(secs) * time.Second
			}
		}
		return nil, &rateLimitedError{retryAfter: after}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(data)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("response_body", bodyStr).
			Str("url", requestURL).
			Msg("record store returned non-2xx status")
		return nil, fmt.Errorf("record store returned status %d: %s", resp.StatusCode, resp.Status)
	}

	return data, nil
}
