package kioskapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EventType tags a stream event.
type EventType string

const (
	// EventToken carries one raw text chunk of the assistant answer.
	EventToken EventType = "token"
	// EventMeta carries the terminal metadata object. The transport
	// delivers it after every token of the same response body.
	EventMeta EventType = "meta"
)

// Event is one tagged event received from a chat stream.
type Event struct {
	Type  EventType
	Token string
	Meta  *ChatMeta
}

// Stream yields chat events in arrival order.
type Stream interface {
	// Recv returns the next event. It returns io.EOF when the response
	// body ends, a timeout APIError when the overall stream deadline
	// fires, and a canceled APIError when the caller's context aborts.
	Recv() (*Event, error)

	// Close releases the stream.
	Close() error
}

// StreamChat opens a /api/chat stream. The stream observes the caller's
// context for cancellation and additionally enforces the client's overall
// stream timeout.
func (c *Client) StreamChat(ctx context.Context, req *ChatRequest) (Stream, error) {
	const path = "/api/chat"

	ctx, span := c.tracer.Start(ctx, "kioskapi.stream",
		trace.WithAttributes(
			attribute.String("http.path", path),
			attribute.Int("chat.history_len", len(req.Messages)),
		))

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)

	fail := func(err error) (Stream, error) {
		span.End()
		cancel()
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fail(fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fail(streamErr(parent, ctx, path, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() {
			_ = resp.Body.Close()
		}()
		apiErr := NewAPIError(path, ErrorCodeHTTP, fmt.Sprintf("chat request failed: %d", resp.StatusCode), nil)
		apiErr.StatusCode = resp.StatusCode
		return fail(apiErr)
	}

	return &chatStream{
		reader: bufio.NewReader(resp.Body),
		closer: resp.Body,
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
		span:   span,
	}, nil
}

// chatStream parses the line-oriented event format: an "event:" line sets
// the type for the data line(s) that follow, a "data:" line dispatches and
// resets the type. Incomplete trailing lines stay buffered in the reader.
type chatStream struct {
	reader *bufio.Reader
	closer io.Closer
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span

	event string
}

func (s *chatStream) Recv() (*Event, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// An unterminated trailing line is dropped, matching the
			// newline-delimited contract.
			if err == io.EOF && s.ctx.Err() == nil {
				return nil, io.EOF
			}
			return nil, streamErr(s.parent, s.ctx, "/api/chat", err)
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		switch {
		case strings.HasPrefix(line, "event: "):
			s.event = strings.TrimSpace(line[len("event: "):])

		case strings.HasPrefix(line, "data: "):
			// Token payloads are raw text; leading whitespace is content.
			data := line[len("data: "):]
			event := s.event
			s.event = ""

			switch event {
			case "token":
				return &Event{Type: EventToken, Token: data}, nil
			case "meta":
				var meta ChatMeta
				if err := json.Unmarshal([]byte(data), &meta); err != nil {
					// Malformed metadata is dropped for this event only.
					continue
				}
				return &Event{Type: EventMeta, Meta: &meta}, nil
			}
		}
	}
}

func (s *chatStream) Close() error {
	s.cancel()
	s.span.End()
	return s.closer.Close()
}

// streamErr maps a transport failure to the error taxonomy: caller abort
// is silent cancellation, our own expired deadline is a timeout, anything
// else surfaces as a transport error.
func streamErr(parent, ctx context.Context, path string, err error) error {
	if parent.Err() == context.Canceled {
		return NewAPIError(path, ErrorCodeCanceled, "stream canceled", err)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return NewAPIError(path, ErrorCodeTimeout, "request timed out", err)
	}
	return NewAPIError(path, ErrorCodeTransport, err.Error(), err)
}
