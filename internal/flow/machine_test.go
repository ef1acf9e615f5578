package flow

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ichs-dev/tayyib-kiosk/pkg/config"
	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
	"github.com/ichs-dev/tayyib-kiosk/pkg/kioskapi"
	"github.com/ichs-dev/tayyib-kiosk/pkg/session"
)

// scriptedStream replays a fixed event sequence, optionally gated on a
// release channel so tests can hold a stream open.
type scriptedStream struct {
	mu      sync.Mutex
	events  []kioskapi.Event
	final   error
	release chan struct{}
	closed  bool
}

func (s *scriptedStream) Recv() (*kioskapi.Event, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		if s.final != nil {
			return nil, s.final
		}
		return nil, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return &ev, nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeChatBackend struct {
	mu       sync.Mutex
	streams  []*scriptedStream
	requests []*kioskapi.ChatRequest
	feedback []*kioskapi.FeedbackRequest
	fbErr    error
}

func (b *fakeChatBackend) StreamChat(_ context.Context, req *kioskapi.ChatRequest) (kioskapi.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if len(b.streams) == 0 {
		return &scriptedStream{}, nil
	}
	st := b.streams[0]
	b.streams = b.streams[1:]
	return st, nil
}

func (b *fakeChatBackend) SendFeedback(_ context.Context, req *kioskapi.FeedbackRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feedback = append(b.feedback, req)
	return b.fbErr
}

func (b *fakeChatBackend) sentFeedback() []*kioskapi.FeedbackRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*kioskapi.FeedbackRequest, len(b.feedback))
	copy(out, b.feedback)
	return out
}

func token(s string) kioskapi.Event {
	return kioskapi.Event{Type: kioskapi.EventToken, Token: s}
}

func metaEvent(t *testing.T, meta kioskapi.ChatMeta) kioskapi.Event {
	t.Helper()
	// round-trip to mirror what the transport hands the machine
	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	var decoded kioskapi.ChatMeta
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return kioskapi.Event{Type: kioskapi.EventMeta, Meta: &decoded}
}

func testTiming() config.TimingConfig {
	return config.TimingConfig{
		StreamTimeout:    time.Second,
		RequestTimeout:   time.Second,
		Inactivity:       time.Minute,
		WatchdogTick:     10 * time.Millisecond,
		IntroDuration:    10 * time.Millisecond,
		IntroExitDelay:   5 * time.Millisecond,
		StageInterval:    10 * time.Millisecond,
		AnswerDwell:      40 * time.Millisecond,
		ErrorResetDelay:  40 * time.Millisecond,
		ThanksResetDelay: 40 * time.Millisecond,
	}
}

// newReadyMachine builds a machine already on the search-ready screen,
// with the submit debounce disabled.
func newReadyMachine(t *testing.T, backend ChatBackend, timing config.TimingConfig) (*Machine, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore(i18n.LangEN)
	require.NoError(t, store.SetLanguage(context.Background(), i18n.LangEN, true))

	m := NewMachine(backend, store, timing, i18n.LangEN,
		WithSubmitLimit(rate.NewLimiter(rate.Inf, 1)))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)

	require.Equal(t, StateSearchReady, m.Snapshot().State)
	return m, store
}

func waitState(t *testing.T, m *Machine, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Snapshot().State == want
	}, time.Second, 2*time.Millisecond)
}

func waitStreamingDone(t *testing.T, m *Machine) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !m.Snapshot().Streaming
	}, time.Second, 2*time.Millisecond)
}

func TestSubmitStreamsTokensInOrder(t *testing.T) {
	backend := &fakeChatBackend{streams: []*scriptedStream{{
		events: []kioskapi.Event{
			token("The "), token("tawaf "), token("has seven circuits."),
			metaEvent(t, kioskapi.ChatMeta{
				Sources:    []kioskapi.Source{{Title: "Rites guide", Snippet: "..."}},
				RouteUsed:  kioskapi.RouteRAG,
				Confidence: 0.91,
			}),
		},
	}}}
	m, _ := newReadyMachine(t, backend, testTiming())

	require.True(t, m.Submit(context.Background(), "How many circuits in tawaf?"))
	waitStreamingDone(t, m)

	snap := m.Snapshot()
	require.Len(t, snap.Messages, 3) // user, assistant, feedback prompt
	assert.Equal(t, "How many circuits in tawaf?", snap.Messages[0].Content)
	assert.Equal(t, "The tawaf has seven circuits.", snap.Messages[1].Content)
	assert.False(t, snap.Messages[1].IsStreaming)
	assert.Equal(t, kioskapi.RouteRAG, snap.Messages[1].RouteUsed)
	assert.Len(t, snap.Messages[1].Sources, 1)
	assert.True(t, snap.Messages[2].IsFeedbackPrompt)
	assert.Equal(t, StateFeedback, snap.State)
	assert.Equal(t, kioskapi.RouteRAG, snap.LastRoute)
	require.NotNil(t, snap.LastConfidence)
	assert.InDelta(t, 0.91, *snap.LastConfidence, 1e-9)
}

func TestSubmitRejectsEmptyAndWhitespace(t *testing.T) {
	backend := &fakeChatBackend{}
	m, _ := newReadyMachine(t, backend, testTiming())

	assert.False(t, m.Submit(context.Background(), ""))
	assert.False(t, m.Submit(context.Background(), "   \t\n"))
	assert.Empty(t, m.Snapshot().Messages)
}

func TestSubmitRejectedWhileStreaming(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeChatBackend{streams: []*scriptedStream{{
		events:  []kioskapi.Event{token("partial")},
		release: release,
	}}}
	m, _ := newReadyMachine(t, backend, testTiming())

	require.True(t, m.Submit(context.Background(), "first question"))
	assert.False(t, m.Submit(context.Background(), "second question"))

	close(release)
	waitStreamingDone(t, m)

	// only the first exchange made it into the conversation
	snap := m.Snapshot()
	var userTurns int
	for _, msg := range snap.Messages {
		if msg.Role == kioskapi.RoleUser {
			userTurns++
		}
	}
	assert.Equal(t, 1, userTurns)
}

func TestSubmitDebouncesDoubleTap(t *testing.T) {
	backend := &fakeChatBackend{streams: []*scriptedStream{
		{events: []kioskapi.Event{token("a"), metaEvent(t, kioskapi.ChatMeta{RouteUsed: kioskapi.RouteOffline})}},
		{events: []kioskapi.Event{token("b")}},
	}}
	store := session.NewMemoryStore(i18n.LangEN)
	require.NoError(t, store.SetLanguage(context.Background(), i18n.LangEN, true))
	m := NewMachine(backend, store, testTiming(), i18n.LangEN) // default limiter
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)

	require.True(t, m.Submit(context.Background(), "first tap"))
	waitStreamingDone(t, m)
	// immediate second submit is swallowed by the debounce
	assert.False(t, m.Submit(context.Background(), "second tap"))
}

func TestAbortAfterResetIsNoOp(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeChatBackend{streams: []*scriptedStream{{
		events:  []kioskapi.Event{token("stale "), token("tokens")},
		release: release,
	}}}
	m, _ := newReadyMachine(t, backend, testTiming())

	require.True(t, m.Submit(context.Background(), "question"))
	m.Reset(ResetUser)
	waitState(t, m, StateAttract)

	// late events from the aborted stream must not resurrect anything
	close(release)
	time.Sleep(20 * time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, StateAttract, snap.State)
	assert.Empty(t, snap.Messages)
	assert.False(t, snap.Streaming)
}

func TestSessionLimitBlocksUntilReset(t *testing.T) {
	backend := &fakeChatBackend{streams: []*scriptedStream{{
		events: []kioskapi.Event{
			token("You have reached the session limit."),
			metaEvent(t, kioskapi.ChatMeta{ErrorCode: kioskapi.ErrCodeSessionLimit}),
		},
	}}}
	m, _ := newReadyMachine(t, backend, testTiming())

	require.True(t, m.Submit(context.Background(), "one more question"))
	waitStreamingDone(t, m)

	snap := m.Snapshot()
	assert.True(t, snap.SessionLimited)
	// no feedback prompt on a capped visit
	require.Len(t, snap.Messages, 2)
	assert.False(t, snap.Messages[1].IsFeedbackPrompt)

	assert.False(t, m.Submit(context.Background(), "blocked"))

	m.Reset(ResetUser)
	waitState(t, m, StateAttract)
	assert.False(t, m.Snapshot().SessionLimited)
}

func TestStreamErrorFallbackMessages(t *testing.T) {
	timeoutErr := kioskapi.NewAPIError("/api/chat", kioskapi.ErrorCodeTimeout, "request timed out", nil)
	transportErr := kioskapi.NewAPIError("/api/chat", kioskapi.ErrorCodeTransport, "connection refused", nil)
	en := i18n.T(i18n.LangEN)

	tests := []struct {
		name   string
		stream *scriptedStream
		want   string
	}{
		{"timeout with no content", &scriptedStream{final: timeoutErr}, en.RequestTimedOut},
		{"transport with no content", &scriptedStream{final: transportErr}, en.ServiceUnavailable},
		{"partial content kept", &scriptedStream{events: []kioskapi.Event{token("partial answer")}, final: transportErr}, "partial answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeChatBackend{streams: []*scriptedStream{tt.stream}}
			m, _ := newReadyMachine(t, backend, testTiming())

			require.True(t, m.Submit(context.Background(), "question"))
			waitStreamingDone(t, m)

			snap := m.Snapshot()
			require.Len(t, snap.Messages, 2)
			assert.Equal(t, tt.want, snap.Messages[1].Content)
			assert.False(t, snap.Messages[1].IsStreaming)
		})
	}
}

func TestCancelIsSilent(t *testing.T) {
	cancelErr := kioskapi.NewAPIError("/api/chat", kioskapi.ErrorCodeCanceled, "canceled", nil)
	backend := &fakeChatBackend{streams: []*scriptedStream{{final: cancelErr}}}
	m, _ := newReadyMachine(t, backend, testTiming())

	require.True(t, m.Submit(context.Background(), "question"))
	waitStreamingDone(t, m)

	snap := m.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Empty(t, snap.Messages[1].Content)
}

func TestFeedbackThumbSendsRatingOnce(t *testing.T) {
	backend := &fakeChatBackend{streams: []*scriptedStream{{
		events: []kioskapi.Event{
			token("answer"),
			metaEvent(t, kioskapi.ChatMeta{RouteUsed: kioskapi.RouteRAG, Confidence: 0.8}),
		},
	}}}
	m, _ := newReadyMachine(t, backend, testTiming())

	require.True(t, m.Submit(context.Background(), "question"))
	waitStreamingDone(t, m)

	snap := m.Snapshot()
	prompt := snap.Messages[2]
	require.True(t, prompt.IsFeedbackPrompt)

	m.FeedbackThumb(context.Background(), prompt.ID, true)
	m.FeedbackThumb(context.Background(), prompt.ID, false) // second thumb ignored

	sent := backend.sentFeedback()
	require.Len(t, sent, 1)
	assert.Equal(t, 5, sent[0].Rating)
	assert.Equal(t, kioskapi.RouteRAG, sent[0].LastRouteUsed)
	require.NotNil(t, sent[0].LastConfidence)
	assert.InDelta(t, 0.8, *sent[0].LastConfidence, 1e-9)

	after := m.Snapshot()
	assert.True(t, after.Messages[2].FeedbackGiven)
	assert.Equal(t, i18n.T(i18n.LangEN).FeedbackMore, after.Messages[2].Content)
}

func TestHistoryIncludesPriorTurns(t *testing.T) {
	backend := &fakeChatBackend{streams: []*scriptedStream{
		{events: []kioskapi.Event{token("first answer"), metaEvent(t, kioskapi.ChatMeta{RouteUsed: kioskapi.RouteOffline})}},
		{events: []kioskapi.Event{token("second answer"), metaEvent(t, kioskapi.ChatMeta{RouteUsed: kioskapi.RouteOffline})}},
	}}
	m, _ := newReadyMachine(t, backend, testTiming())

	require.True(t, m.Submit(context.Background(), "first"))
	waitStreamingDone(t, m)
	require.True(t, m.Submit(context.Background(), "second"))
	waitStreamingDone(t, m)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.requests, 2)
	assert.Len(t, backend.requests[0].Messages, 1)
	// user, assistant, feedback prompt, then the new user turn
	require.Len(t, backend.requests[1].Messages, 4)
	assert.Equal(t, "second", backend.requests[1].Messages[3].Content)
	assert.Equal(t, backend.requests[0].SessionID, backend.requests[1].SessionID)
}

func TestInactivityResetClearsVisit(t *testing.T) {
	timing := testTiming()
	timing.Inactivity = 50 * time.Millisecond
	timing.WatchdogTick = 10 * time.Millisecond

	backend := &fakeChatBackend{}
	m, store := newReadyMachine(t, backend, timing)

	before, err := store.Current(context.Background())
	require.NoError(t, err)

	waitState(t, m, StateAttract)

	after, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
	assert.False(t, after.LangLocked)
}

func TestTapToStartPlaysIntroThenReady(t *testing.T) {
	backend := &fakeChatBackend{}
	store := session.NewMemoryStore(i18n.LangAR)
	m := NewMachine(backend, store, testTiming(), i18n.LangAR,
		WithSubmitLimit(rate.NewLimiter(rate.Inf, 1)))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)

	require.Equal(t, StateAttract, m.Snapshot().State)
	require.NoError(t, m.TapToStart(context.Background()))
	assert.Equal(t, StateIntroWave, m.Snapshot().State)

	waitState(t, m, StateSearchReady)

	visit, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, visit.LangLocked)
	assert.Equal(t, i18n.LangAR, visit.Lang)
}

func TestStartResumesLockedLanguage(t *testing.T) {
	store := session.NewMemoryStore(i18n.LangEN)
	require.NoError(t, store.SetLanguage(context.Background(), i18n.LangFR, true))

	m := NewMachine(&fakeChatBackend{}, store, testTiming(), i18n.LangEN)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)

	snap := m.Snapshot()
	assert.Equal(t, StateSearchReady, snap.State)
	assert.Equal(t, i18n.LangFR, snap.Lang)
}
