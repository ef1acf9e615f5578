package kioskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultStreamTimeout  = 20 * time.Second
	defaultRequestTimeout = 15 * time.Second
)

// Client talks to the kiosk backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	streamTimeout  time.Duration
	requestTimeout time.Duration
	tracer         trace.Tracer
	logger         *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStreamTimeout sets the overall deadline for a chat stream.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Client) { c.streamTimeout = d }
}

// WithRequestTimeout sets the deadline for plain JSON calls.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a backend client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     &http.Client{},
		streamTimeout:  defaultStreamTimeout,
		requestTimeout: defaultRequestTimeout,
		tracer:         otel.Tracer("kioskapi"),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask performs a single-shot /api/ask exchange.
func (c *Client) Ask(ctx context.Context, req *AskRequest) (*AskResponse, error) {
	var resp AskResponse
	if err := c.postJSON(ctx, "/api/ask", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendFeedback submits a feedback record. The response body is not
// consumed beyond the status code.
func (c *Client) SendFeedback(ctx context.Context, req *FeedbackRequest) error {
	return c.postJSON(ctx, "/api/feedback", req, nil)
}

// postJSON issues a POST with a JSON body and decodes the JSON response
// into out (when non-nil). A deadline is applied only when the caller has
// not set one of their own.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "kioskapi.post",
		trace.WithAttributes(attribute.String("http.path", path)))
	defer span.End()

	// Own the deadline only when the caller has none; expiry of our own
	// deadline is what counts as a timeout.
	ownDeadline := false
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
		ownDeadline = true
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ownDeadline && ctx.Err() == context.DeadlineExceeded {
			return NewAPIError(path, ErrorCodeTimeout, "request timed out", err)
		}
		if ctx.Err() == context.Canceled {
			return NewAPIError(path, ErrorCodeCanceled, "request canceled", err)
		}
		return NewAPIError(path, ErrorCodeTransport, err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(text))
		if msg == "" {
			msg = fmt.Sprintf("request failed: %d", resp.StatusCode)
		}
		apiErr := NewAPIError(path, ErrorCodeHTTP, msg, nil)
		apiErr.StatusCode = resp.StatusCode
		c.logger.Warn("backend call failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewAPIError(path, ErrorCodeTransport, "decode response: "+err.Error(), err)
	}
	return nil
}
