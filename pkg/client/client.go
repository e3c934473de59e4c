// Package client provides the HTTP client for the enforcement-record search
// service: group search submission, task status and task result calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/fssp-client/pkg/fssp"
)

// Endpoint paths relative to Config.BaseURL.
const (
	EndpointSearchGroup = "search/group"
	EndpointStatus      = "status"
	EndpointResult      = "result"
)

// DefaultBaseURL is the public search API root.
const DefaultBaseURL = "https://api-ip.fssp.gov.ru/api/v1.0/"

// maxBodySize caps how much of a response body is read.
const maxBodySize = 32 << 20

// Client talks to the search service. It performs exactly one HTTP call per
// method invocation; pacing and retries belong to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api-ip.fssp.gov.ru/api/v1.0/".
	BaseURL string

	// Token authenticates every call. Supplied by configuration, never logged.
	Token string

	// UserAgent header sent with each request.
	UserAgent string

	// Timeout bounds a single HTTP call.
	Timeout time.Duration
}

// DefaultConfig returns a configuration for the public API.
func DefaultConfig(token string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Token:     token,
		UserAgent: "fssp-client/0.1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new search service client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrEmptyToken
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		config:  cfg,
		logger:  log.With().Str("component", "fssp-client").Logger(),
	}, nil
}

// SearchGroup submits a batch and returns the task id the service assigned.
func (c *Client) SearchGroup(ctx context.Context, b fssp.Batch) (fssp.TaskID, error) {
	body, err := json.Marshal(newSearchGroupRequest(c.config.Token, b))
	if err != nil {
		return "", fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(EndpointSearchGroup, ""), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out searchGroupResponse
	if err := c.do(req, EndpointSearchGroup, &out); err != nil {
		return "", err
	}

	if out.Response.Task == "" {
		return "", c.protocolError(EndpointSearchGroup, ErrEmptyTask)
	}

	c.logger.Debug().
		Int("items", len(b)).
		Str("task", out.Response.Task).
		Msg("Search group accepted")

	return fssp.TaskID(out.Response.Task), nil
}

// Status returns the processing status code of a task.
func (c *Client) Status(ctx context.Context, task fssp.TaskID) (int, error) {
	if task == "" {
		return 0, ErrEmptyTask
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(EndpointStatus, task), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	var out statusResponse
	if err := c.do(req, EndpointStatus, &out); err != nil {
		return 0, err
	}
	if out.Code == nil {
		return 0, c.protocolError(EndpointStatus, ErrMissingCode)
	}

	return *out.Code, nil
}

// Result fetches the result payload of a finished task.
func (c *Client) Result(ctx context.Context, task fssp.TaskID) (*ResultPayload, error) {
	if task == "" {
		return nil, ErrEmptyTask
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(EndpointResult, task), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var out resultResponse
	if err := c.do(req, EndpointResult, &out); err != nil {
		return nil, err
	}

	return &ResultPayload{Elements: out.Response.Result}, nil
}

// do executes req and decodes a 200 body into out. Any other outcome is
// returned as an *APIError.
func (c *Client) do(req *http.Request, endpoint string, out any) error {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return c.fail(&APIError{
			Endpoint: endpoint,
			Class:    ErrorClassNetwork,
			Message:  "request failed",
			Err:      err,
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return c.fail(&APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		})
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return c.fail(classifyResponse(endpoint, resp, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return c.protocolError(endpoint, fmt.Errorf("decode body: %w", err))
	}

	return nil
}

func (c *Client) protocolError(endpoint string, err error) error {
	return c.fail(&APIError{
		Endpoint:   endpoint,
		StatusCode: http.StatusOK,
		Class:      ErrorClassProtocol,
		Message:    "unexpected response body",
		Err:        err,
	})
}

// fail records and logs an API error before handing it back.
func (c *Client) fail(e *APIError) error {
	errorsTotal.WithLabelValues(string(e.Class)).Inc()

	event := c.logger.Warn()
	if e.Class == ErrorClassRateLimited {
		event = c.logger.Debug()
	}
	event.
		Str("endpoint", e.Endpoint).
		Int("status_code", e.StatusCode).
		Str("error_class", string(e.Class)).
		Str("message", e.Message).
		Msg("Search service request error")

	return e
}

// endpointURL resolves path against the base URL. A non-empty task adds the
// token and task query parameters used by the GET endpoints.
func (c *Client) endpointURL(path string, task fssp.TaskID) string {
	u := c.baseURL.JoinPath(path)
	if task != "" {
		q := u.Query()
		q.Set("token", c.config.Token)
		q.Set("task", string(task))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
