package kioskapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, s Stream) ([]*Event, error) {
	t.Helper()
	var events []*Event
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestStreamChatTokensAndMeta(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: token\n")
		fmt.Fprint(w, "data: Miqat \n")
		fmt.Fprint(w, "event: token\n")
		fmt.Fprint(w, "data: is...\n")
		fmt.Fprint(w, "event: meta\n")
		fmt.Fprint(w, `data: {"sources":[{"title":"Umrah Guide","snippet":"..."}],"refinement_chips":["Ihram rules"],"route_used":"rag","confidence":0.9}`+"\n")
	})

	client := New(srv.URL)
	stream, err := client.StreamChat(context.Background(), &ChatRequest{
		Lang:      "EN",
		Messages:  []ChatTurn{{Role: RoleUser, Content: "What is miqat?"}},
		SessionID: "s-1",
	})
	require.NoError(t, err)
	defer stream.Close()

	events, err := collect(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Token payloads are raw, trailing spaces included
	assert.Equal(t, EventToken, events[0].Type)
	assert.Equal(t, "Miqat ", events[0].Token)
	assert.Equal(t, "is...", events[1].Token)

	// Terminal meta arrives after all tokens
	require.Equal(t, EventMeta, events[2].Type)
	meta := events[2].Meta
	assert.Equal(t, "rag", meta.RouteUsed)
	assert.InDelta(t, 0.9, meta.Confidence, 1e-9)
	require.Len(t, meta.Sources, 1)
	assert.Equal(t, "Umrah Guide", meta.Sources[0].Title)
	assert.Equal(t, []string{"Ihram rules"}, meta.RefinementChips)
}

func TestStreamChatBuffersSplitLines(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		f := w.(http.Flusher)
		// Lines arrive split across writes; the parser must retain the
		// incomplete tail until the rest shows up.
		fmt.Fprint(w, "event: tok")
		f.Flush()
		fmt.Fprint(w, "en\ndata: Hel")
		f.Flush()
		fmt.Fprint(w, "lo\n")
		f.Flush()
	})

	client := New(srv.URL)
	stream, err := client.StreamChat(context.Background(), &ChatRequest{Lang: "EN"})
	require.NoError(t, err)
	defer stream.Close()

	events, err := collect(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Hello", events[0].Token)
}

func TestStreamChatDropsMalformedMeta(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: meta\n")
		fmt.Fprint(w, "data: {not json\n")
		fmt.Fprint(w, "event: token\n")
		fmt.Fprint(w, "data: still alive\n")
		fmt.Fprint(w, "event: meta\n")
		fmt.Fprint(w, `data: {"route_used":"rag"}`+"\n")
	})

	client := New(srv.URL)
	stream, err := client.StreamChat(context.Background(), &ChatRequest{Lang: "EN"})
	require.NoError(t, err)
	defer stream.Close()

	events, err := collect(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 2, "malformed meta is dropped, not fatal")
	assert.Equal(t, "still alive", events[0].Token)
	assert.Equal(t, "rag", events[1].Meta.RouteUsed)
}

func TestStreamChatEventTypeResets(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: token\n")
		fmt.Fprint(w, "data: one\n")
		// No event line before this data line: it must be ignored.
		fmt.Fprint(w, "data: orphan\n")
	})

	client := New(srv.URL)
	stream, err := client.StreamChat(context.Background(), &ChatRequest{Lang: "EN"})
	require.NoError(t, err)
	defer stream.Close()

	events, err := collect(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "one", events[0].Token)
}

func TestStreamChatNonOK(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	})

	client := New(srv.URL)
	_, err := client.StreamChat(context.Background(), &ChatRequest{Lang: "EN"})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeHTTP, apiErr.Code)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestStreamChatTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		<-release
	})
	defer close(release)

	client := New(srv.URL, WithStreamTimeout(50*time.Millisecond))
	stream, err := client.StreamChat(context.Background(), &ChatRequest{Lang: "EN"})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestStreamChatCanceledIsSilent(t *testing.T) {
	release := make(chan struct{})
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: token\ndata: partial\n")
		w.(http.Flusher).Flush()
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := New(srv.URL)
	stream, err := client.StreamChat(ctx, &ChatRequest{Lang: "EN"})
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", ev.Token)

	cancel()
	_, err = stream.Recv()
	require.Error(t, err)
	assert.True(t, IsCanceled(err), "user abort is cancellation, not failure: %v", err)
	assert.False(t, IsTimeout(err))
}

func TestStreamChatTokenConcatenationOrder(t *testing.T) {
	parts := []string{"Al", "pha ", "Bra", "vo ", "Char", "lie"}
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		for _, p := range parts {
			fmt.Fprintf(w, "event: token\ndata: %s\n", p)
		}
		fmt.Fprint(w, "event: meta\ndata: {}\n")
	})

	client := New(srv.URL)
	stream, err := client.StreamChat(context.Background(), &ChatRequest{Lang: "EN"})
	require.NoError(t, err)
	defer stream.Close()

	var sb strings.Builder
	sawMeta := false
	events, err := collect(t, stream)
	require.NoError(t, err)
	for _, ev := range events {
		switch ev.Type {
		case EventToken:
			assert.False(t, sawMeta, "meta must come after every token")
			sb.WriteString(ev.Token)
		case EventMeta:
			sawMeta = true
		}
	}
	assert.True(t, sawMeta)
	assert.Equal(t, strings.Join(parts, ""), sb.String())
}
