// Package playground is a Go SDK for a remote Go compile-and-run service.
//
// Two wire protocols are supported: the JSON proxy protocol served by the
// learner server at /api/v1/playground, and the form-encoded protocol of the
// upstream playground (https://play.golang.org/compile).
package playground

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultUpstreamURL is the public playground compile endpoint
const DefaultUpstreamURL = "https://play.golang.org/compile"

// ErrUnexpectedStatus is wrapped by StatusError
var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError is returned when the service answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Event is one chunk of program output
type Event struct {
	Message string `json:"Message"`
	Kind    string `json:"Kind"`
	Delay   int64  `json:"Delay"`
}

// Event kinds
const (
	KindStdout = "stdout"
	KindStderr = "stderr"
)

// Response is the result of a compile-and-run request
type Response struct {
	Errors      string  `json:"Errors,omitempty"`
	Events      []Event `json:"Events,omitempty"`
	Status      int     `json:"Status,omitempty"`
	IsTest      bool    `json:"IsTest,omitempty"`
	TestsFailed int     `json:"TestsFailed,omitempty"`
}

// CompileRequest is the body of the JSON proxy protocol
type CompileRequest struct {
	Code string `json:"code"`
}

// Client talks to a compile-and-run service
type Client struct {
	baseURL    string
	upstream   bool
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithUpstream makes the client speak the upstream form-encoded protocol
func WithUpstream() Option {
	return func(c *Client) {
		c.upstream = true
	}
}

// NewClient creates a new playground client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the endpoint the client posts to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Compile sends code for compilation and execution
func (c *Client) Compile(ctx context.Context, code string) (*Response, error) {
	var (
		body        io.Reader
		contentType string
	)
	if c.upstream {
		form := url.Values{}
		form.Set("version", "2")
		form.Set("body", code)
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else {
		payload, err := json.Marshal(CompileRequest{Code: code})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	resp, err := c.doRequest(ctx, http.MethodPost, contentType, body)
	if err != nil {
		return nil, err
	}

	var result Response
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// HealthCheck verifies the service is reachable. Client errors count as reachable
// because the compile endpoints reject bodiless requests.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
