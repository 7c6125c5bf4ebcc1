package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a thin HTTP client for the mail API. It attaches the
// session token to every request, serializes JSON bodies, and
// classifies responses into the error taxonomy in errors.go.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a mail API client. The baseURL should be the root
// URL of the mail service (e.g., https://mail.corp.example.com). The
// token is the session credential attached as a Bearer header.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Delete performs an HTTP DELETE request and unmarshals the JSON
// response.
func (c *Client) Delete(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodDelete, path, nil, result)
}

// PostMultipart performs an HTTP POST with a pre-built multipart body.
// Used by the send endpoint when attachments are present.
func (c *Client) PostMultipart(
	ctx context.Context,
	path string,
	contentType string,
	body io.Reader,
	result interface{},
) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, body,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	return c.decodeResponse(resp, http.MethodPost, path, result)
}

// do is the core HTTP method that builds the request, attaches the
// session credential, and handles JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	// Request ids make server-side log correlation possible.
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Cancellation of a superseded request surfaces here; keep the
		// context error in the chain so IsCancelled can see it.
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	return c.decodeResponse(resp, method, path, result)
}

// decodeResponse classifies the HTTP status and unmarshals a JSON body
// into result when one is expected.
func (c *Client) decodeResponse(
	resp *http.Response,
	method string,
	path string,
	result interface{},
) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{
			Message: fmt.Sprintf("session rejected on %s %s", method, path),
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			RetryAfter: retryAfterDuration(resp),
		}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(respBody, method, path),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &Error{
			Message: fmt.Sprintf(
				"unparseable response from %s %s: %v", method, path, err,
			),
		}
	}

	return nil
}

// apiErrorMessage extracts the server-provided error text, falling back
// to the raw body.
func apiErrorMessage(body []byte, method, path string) string {
	var wire struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wire) == nil {
		if wire.Error != "" {
			return wire.Error
		}
		if wire.Message != "" {
			return wire.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("request %s %s failed", method, path)
	}
	return text
}

// retryAfterDuration reads the Retry-After header from a 429 response.
func retryAfterDuration(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		return time.Until(at)
	}
	return 0
}
