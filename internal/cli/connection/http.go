// Package connection provides the HTTP client for syncmesh-cli.
package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Request headers understood by the server.
const (
	HeaderSessionID = "X-Session-ID"
	HeaderRequestID = "X-Request-ID"
)

// UnixScheme prefixes server addresses that name a unix socket.
const UnixScheme = "unix://"

// DefaultTimeout bounds plain requests. Event streams are not bounded.
const DefaultTimeout = 30 * time.Second

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL    string
	client     *http.Client
	stream     *http.Client
	adminToken string
	sessionID  string
}

// ClientOption configures an HTTPClient.
type ClientOption func(*http.Transport)

// WithRootCAs makes https connections trust pool instead of the system
// roots.
func WithRootCAs(pool *x509.CertPool) ClientOption {
	return func(t *http.Transport) {
		t.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
}

// NewHTTPClient creates a new HTTP client. adminToken is sent as a bearer
// token and may be empty.
func NewHTTPClient(server, adminToken string, opts ...ClientOption) *HTTPClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	for _, opt := range opts {
		opt(transport)
	}

	baseURL := server
	switch {
	case strings.HasPrefix(server, UnixScheme):
		socket := strings.TrimPrefix(server, UnixScheme)
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		}
		baseURL = "http://unix"
	case !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://"):
		baseURL = "http://" + server
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &HTTPClient{
		baseURL:    baseURL,
		adminToken: adminToken,
		client:     &http.Client{Transport: transport, Timeout: DefaultTimeout},
		stream:     &http.Client{Transport: transport},
	}
}

// WithSession returns a copy of the client that sends sessionID with every
// request.
func (c *HTTPClient) WithSession(sessionID string) *HTTPClient {
	cp := *c
	cp.sessionID = sessionID
	return &cp
}

// SessionID returns the session the client acts as, if any.
func (c *HTTPClient) SessionID() string {
	return c.sessionID
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with JSON body.
func (c *HTTPClient) Put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Do sends a request. A non-nil body is encoded as JSON.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)
	return req, nil
}

// addHeaders adds authentication and common headers.
func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}
	if c.sessionID != "" {
		req.Header.Set(HeaderSessionID, c.sessionID)
	}
	req.Header.Set("User-Agent", "syncmesh-cli/1.0")
}

// APIError is an error envelope returned by the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// ParseResponse decodes the response envelope and unmarshals its data into
// target. Error statuses are returned as *APIError.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Code = env.Code
			apiErr.Message = env.Message
			apiErr.RequestID = env.RequestID
		}
		return apiErr
	}
	if decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return fmt.Errorf("parse response: %w", decodeErr)
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}
