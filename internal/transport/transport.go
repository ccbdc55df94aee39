// Package transport carries RPC requests to the Wolke API endpoint over
// HTTP/JSON. It owns no retry logic; transient-fault handling belongs to
// the callers that need it.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Error codes returned by the service.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeFailedPrecondition = "FAILED_PRECONDITION"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
)

// StatusError is a structured fault reported by the service.
type StatusError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wolke: %s (%s)", e.Message, e.Code)
}

// IsNotFound reports whether err is a remote "not found" fault. Lookup
// call sites use this to translate the fault into an absent result.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == CodeNotFound
}

// Invoker executes one RPC against the service.
type Invoker interface {
	// Invoke sends req as the body of the named method and decodes the
	// response into resp. resp may be nil for methods without a result.
	Invoke(ctx context.Context, method string, req, resp any) error
}

type Config struct {
	Endpoint string // base URL, e.g. https://wolke.example.com
	APIKey   string
	Timeout  time.Duration
}

// Client is the HTTP/JSON Invoker used against a real endpoint.
type Client struct {
	endpoint string
	apiKey   string
	hc       *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		hc:       &http.Client{Timeout: timeout},
	}
}

func (c *Client) Invoke(ctx context.Context, method string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return decodeStatusError(method, httpResp)
	}

	if resp == nil {
		io.Copy(io.Discard, httpResp.Body)
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func decodeStatusError(method string, httpResp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("%s: read error response: %w", method, err)
	}

	se := &StatusError{HTTPStatus: httpResp.StatusCode}
	if jsonErr := json.Unmarshal(data, se); jsonErr != nil || se.Code == "" {
		// Non-JSON error bodies (proxies, load balancers) still surface
		// as a StatusError so callers have one fault shape to handle.
		se.Code = CodeInternal
		se.Message = fmt.Sprintf("%s failed with HTTP %d", method, httpResp.StatusCode)
	}
	return se
}
