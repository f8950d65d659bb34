package rembg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyResult is returned when the model server answers 200 with no body.
var ErrEmptyResult = errors.New("rembg returned an empty image")

// Client removes image backgrounds through a rembg model server.
type Client interface {
	// Remove returns the PNG cut-out of the image read from r.
	Remove(ctx context.Context, r io.Reader, filename string) ([]byte, error)
	// Ping checks that the server is reachable.
	Ping(ctx context.Context) error
}

// HTTPClient implements Client against `rembg s`.
type HTTPClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config for creating a new rembg client.
type Config struct {
	BaseURL string        // Optional, defaults to http://127.0.0.1:7000
	Model   string        // Optional, defaults to "u2net"
	Timeout time.Duration // Optional, defaults to 2 minutes
}

// NewClient creates a new rembg client.
func NewClient(cfg Config) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:7000"
	}
	if cfg.Model == "" {
		cfg.Model = "u2net"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Remove sends the image to the model server and returns the PNG result.
func (c *HTTPClient) Remove(ctx context.Context, r io.Reader, filename string) ([]byte, error) {
	if filename == "" {
		filename = "image"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}

	if err := writer.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/remove", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "image/png")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}
	if len(respBody) == 0 {
		return nil, ErrEmptyResult
	}

	return respBody, nil
}

// Ping checks that the server answers HTTP at all.
func (c *HTTPClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}

// APIError is a non-200 answer from the model server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rembg error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("rembg error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether the server is likely still starting up.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusBadGateway
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
