package flow

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ichs-dev/tayyib-kiosk/pkg/config"
	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
	"github.com/ichs-dev/tayyib-kiosk/pkg/kioskapi"
	"github.com/ichs-dev/tayyib-kiosk/pkg/observability"
	"github.com/ichs-dev/tayyib-kiosk/pkg/session"
)

// ChatBackend is the slice of the backend client the chat machine needs.
type ChatBackend interface {
	StreamChat(ctx context.Context, req *kioskapi.ChatRequest) (kioskapi.Stream, error)
	SendFeedback(ctx context.Context, req *kioskapi.FeedbackRequest) error
}

// Snapshot is a read-only view of the machine for screen renderers.
type Snapshot struct {
	State          State
	Lang           i18n.Lang
	Messages       []Message
	Streaming      bool
	SessionLimited bool
	LastRoute      string
	LastConfidence *float64
}

// Machine is the multi-turn chat variant of the kiosk flow. It is the
// single owner of flow state and conversation history; renderers observe
// snapshots and never mutate.
type Machine struct {
	mu sync.Mutex

	backend ChatBackend
	store   session.Store
	timing  config.TimingConfig
	log     *zap.Logger
	limiter *rate.Limiter
	notify  func(Snapshot)

	state          State
	lang           i18n.Lang
	messages       []*Message
	streaming      bool
	sessionLimited bool
	lastRoute      string
	lastConfidence *float64

	// gen invalidates in-flight stream callbacks across resets: a
	// callback carrying a stale generation is a no-op, never a crash.
	gen          uint64
	cancelStream context.CancelFunc

	wd         *watchdog
	introTimer *time.Timer
	introExit  *time.Timer
	introDone  bool
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLogger sets the machine logger.
func WithLogger(l *zap.Logger) MachineOption {
	return func(m *Machine) { m.log = l }
}

// WithNotify registers the observer invoked after every state change.
func WithNotify(fn func(Snapshot)) MachineOption {
	return func(m *Machine) { m.notify = fn }
}

// WithSubmitLimit overrides the double-tap debounce on submissions.
func WithSubmitLimit(l *rate.Limiter) MachineOption {
	return func(m *Machine) { m.limiter = l }
}

// NewMachine creates a chat flow machine in the attract state.
func NewMachine(backend ChatBackend, store session.Store, timing config.TimingConfig, lang i18n.Lang, opts ...MachineOption) *Machine {
	m := &Machine{
		backend: backend,
		store:   store,
		timing:  timing,
		log:     zap.NewNop(),
		limiter: rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
		notify:  func(Snapshot) {},
		state:   StateAttract,
		lang:    lang,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.wd = newWatchdog(timing.Inactivity, timing.WatchdogTick, func() {
		m.Reset(ResetInactivity)
	})
	return m
}

// Start ensures a visit exists and resumes the search-ready screen when a
// persisted language lock survives a front-end restart.
func (m *Machine) Start(ctx context.Context) error {
	visit, err := m.store.Ensure(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if visit.Lang != "" {
		m.lang = visit.Lang
	}
	if visit.LangLocked {
		m.state = StateSearchReady
		m.wd.Arm()
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	observability.SetFlowState(string(snap.State))
	m.notify(snap)
	return nil
}

// Snapshot returns a read-only copy of the current flow state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	msgs := make([]Message, 0, len(m.messages))
	for _, msg := range m.messages {
		msgs = append(msgs, msg.clone())
	}
	return Snapshot{
		State:          m.state,
		Lang:           m.lang,
		Messages:       msgs,
		Streaming:      m.streaming,
		SessionLimited: m.sessionLimited,
		LastRoute:      m.lastRoute,
		LastConfidence: m.lastConfidence,
	}
}

// Touch records user activity for the inactivity watchdog.
func (m *Machine) Touch() {
	m.wd.Touch()
}

// SetLanguage switches the display language while still on the attract
// screen, before the language locks.
func (m *Machine) SetLanguage(ctx context.Context, lang i18n.Lang) error {
	m.mu.Lock()
	if m.state != StateAttract && m.state != StateLanguagePick {
		m.mu.Unlock()
		return nil
	}
	m.lang = lang
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.SetLanguage(ctx, lang, false); err != nil {
		return err
	}
	m.notify(snap)
	return nil
}

// TapToStart advances attract directly into the intro animation, locking
// the currently selected language for the rest of the visit.
func (m *Machine) TapToStart(ctx context.Context) error {
	m.mu.Lock()
	if !m.state.CanEnter(StateIntroWave) {
		m.mu.Unlock()
		return nil
	}
	lang := m.lang
	m.enterIntroLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.SetLanguage(ctx, lang, true); err != nil {
		return err
	}
	m.emit(snap)
	return nil
}

// enterIntroLocked starts the intro animation and its auto-advance timer.
func (m *Machine) enterIntroLocked() {
	m.state = StateIntroWave
	m.introDone = false
	m.wd.Disarm()
	m.introTimer = time.AfterFunc(m.timing.IntroDuration, m.SkipIntro)
}

// SkipIntro ends the intro early on a tap; the auto-advance timer calls
// it as well. The transition commits after the exit-animation delay.
func (m *Machine) SkipIntro() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIntroWave || m.introDone {
		return
	}
	m.introDone = true
	if m.introTimer != nil {
		m.introTimer.Stop()
		m.introTimer = nil
	}
	m.introExit = time.AfterFunc(m.timing.IntroExitDelay, m.finishIntro)
}

func (m *Machine) finishIntro() {
	m.mu.Lock()
	if m.state != StateIntroWave {
		m.mu.Unlock()
		return
	}
	m.state = StateSearchReady
	m.introExit = nil
	m.wd.Arm()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
}

// Submit starts a chat exchange for the given query text. It reports
// whether the submission was accepted; whitespace-only text, an in-flight
// stream, a reached session limit, and double-taps are all rejected
// without touching the conversation.
func (m *Machine) Submit(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	visit, err := m.store.Ensure(ctx)
	if err != nil {
		m.log.Warn("session store unavailable", zap.Error(err))
		return false
	}

	m.mu.Lock()
	if m.streaming || m.sessionLimited || !m.state.CanEnter(StateChat) {
		m.mu.Unlock()
		return false
	}
	if !m.limiter.Allow() {
		m.mu.Unlock()
		return false
	}

	userMsg := newUserMessage(text)
	asst := newStreamingMessage()

	// History includes every prior turn plus the new user turn.
	history := make([]kioskapi.ChatTurn, 0, len(m.messages)+1)
	for _, msg := range m.messages {
		history = append(history, kioskapi.ChatTurn{Role: msg.Role, Content: msg.Content})
	}
	history = append(history, kioskapi.ChatTurn{Role: userMsg.Role, Content: userMsg.Content})

	m.messages = append(m.messages, userMsg, asst)
	m.streaming = true
	m.state = StateChat
	if visit.Lang != "" {
		m.lang = visit.Lang
	}
	lang := m.lang
	gen := m.gen

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancelStream = cancel
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.wd.Touch()
	observability.RecordQuery("chat")
	m.emit(snap)

	go m.exchange(streamCtx, gen, asst.ID, &kioskapi.ChatRequest{
		Lang:      string(lang),
		Messages:  history,
		SessionID: visit.ID,
	})
	return true
}

// exchange runs one streaming request and reconciles its events into the
// open assistant turn.
func (m *Machine) exchange(ctx context.Context, gen uint64, msgID string, req *kioskapi.ChatRequest) {
	stream, err := m.backend.StreamChat(ctx, req)
	if err != nil {
		m.streamFailed(gen, msgID, err)
		return
	}
	defer func() {
		_ = stream.Close()
	}()

	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			m.streamEnded(gen, msgID)
			return
		}
		if err != nil {
			m.streamFailed(gen, msgID, err)
			return
		}
		switch ev.Type {
		case kioskapi.EventToken:
			m.appendToken(gen, msgID, ev.Token)
		case kioskapi.EventMeta:
			m.applyMeta(gen, msgID, ev.Meta)
		}
	}
}

// messageLocked finds a turn by id. Returns nil after a reset cleared it.
func (m *Machine) messageLocked(id string) *Message {
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

func (m *Machine) appendToken(gen uint64, msgID, token string) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	msg := m.messageLocked(msgID)
	if msg == nil || !msg.IsStreaming {
		m.mu.Unlock()
		return
	}
	msg.Content += token
	snap := m.snapshotLocked()
	m.mu.Unlock()

	observability.RecordStreamToken()
	m.notify(snap)
}

func (m *Machine) applyMeta(gen uint64, msgID string, meta *kioskapi.ChatMeta) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	msg := m.messageLocked(msgID)
	if msg == nil {
		m.mu.Unlock()
		return
	}

	msg.Sources = meta.Sources
	msg.RefinementChips = meta.RefinementChips
	msg.RouteUsed = meta.RouteUsed
	msg.Confidence = meta.Confidence
	msg.GeneralMode = meta.GeneralMode
	msg.IsStreaming = false

	m.streaming = false
	m.lastRoute = meta.RouteUsed
	conf := meta.Confidence
	m.lastConfidence = &conf

	switch {
	case meta.SessionLimited():
		// The visit is capped: no feedback prompt, submissions stay
		// rejected until a reset.
		m.sessionLimited = true
	case meta.ClarifyingQuestion != "" && strings.TrimSpace(msg.Content) == "":
		m.state = StateClarify
	case meta.ClarifyingQuestion != "":
		// A clarifier with answer text gets no "was this helpful?".
	default:
		m.messages = append(m.messages, newFeedbackPrompt(i18n.T(m.lang).FeedbackHelp))
		m.state = StateFeedback
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
}

// streamEnded handles a stream that closed without a terminal meta event.
func (m *Machine) streamEnded(gen uint64, msgID string) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	msg := m.messageLocked(msgID)
	if msg == nil || !msg.IsStreaming {
		m.mu.Unlock()
		return
	}
	msg.IsStreaming = false
	m.streaming = false
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
}

// streamFailed converts a transport failure into in-band turn content.
// Partial content is kept; a fallback message appears only when nothing
// streamed. User-triggered cancellation is silent.
func (m *Machine) streamFailed(gen uint64, msgID string, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	msg := m.messageLocked(msgID)
	if msg == nil {
		m.streaming = false
		m.mu.Unlock()
		return
	}

	if !kioskapi.IsCanceled(err) && msg.Content == "" {
		t := i18n.T(m.lang)
		if kioskapi.IsTimeout(err) {
			msg.Content = t.RequestTimedOut
		} else {
			msg.Content = t.ServiceUnavailable
		}
	}
	msg.IsStreaming = false
	m.streaming = false
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if !kioskapi.IsCanceled(err) {
		code := kioskapi.ErrorCodeTransport
		if kioskapi.IsTimeout(err) {
			code = kioskapi.ErrorCodeTimeout
		}
		observability.RecordStreamError(code)
		m.log.Warn("chat stream failed", zap.Error(err))
	}
	m.emit(snap)
}

// FeedbackThumb answers a feedback prompt turn. The prompt swaps to the
// follow-up question and a best-effort telemetry record is sent; a failed
// submission never alters the displayed state.
func (m *Machine) FeedbackThumb(ctx context.Context, msgID string, positive bool) {
	m.wd.Touch()

	m.mu.Lock()
	msg := m.messageLocked(msgID)
	if msg == nil || !msg.IsFeedbackPrompt || msg.FeedbackGiven {
		m.mu.Unlock()
		return
	}
	msg.FeedbackGiven = true
	msg.Content = i18n.T(m.lang).FeedbackMore
	lastRoute := m.lastRoute
	lastConfidence := m.lastConfidence
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)

	rating := 2
	if positive {
		rating = 5
	}
	observability.RecordFeedback(rating)

	visit, err := m.store.Current(ctx)
	if err != nil {
		m.log.Debug("feedback without visit", zap.Error(err))
		return
	}
	req := &kioskapi.FeedbackRequest{
		SessionID:      visit.ID,
		Rating:         rating,
		TimeOnScreenMS: time.Since(visit.StartedAt).Milliseconds(),
		LastRouteUsed:  lastRoute,
		LastConfidence: lastConfidence,
	}
	if err := m.backend.SendFeedback(ctx, req); err != nil {
		// Swallowed: feedback must never disrupt the chat.
		m.log.Debug("feedback submission failed", zap.Error(err))
	}
}

// Reset tears the visit down: aborts any in-flight stream, clears the
// conversation and session keys, and re-arms the attract screen.
func (m *Machine) Reset(reason ResetReason) {
	m.mu.Lock()
	m.gen++
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
	if m.introTimer != nil {
		m.introTimer.Stop()
		m.introTimer = nil
	}
	if m.introExit != nil {
		m.introExit.Stop()
		m.introExit = nil
	}
	m.wd.Disarm()

	m.state = StateReset
	m.messages = nil
	m.streaming = false
	m.sessionLimited = false
	m.lastRoute = ""
	m.lastConfidence = nil
	resetSnap := m.snapshotLocked()
	m.mu.Unlock()

	m.log.Info("kiosk reset", zap.String("reason", string(reason)))
	observability.RecordReset(string(reason))
	m.emit(resetSnap)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn("session clear failed", zap.Error(err))
	}
	visit, err := m.store.Ensure(ctx)

	m.mu.Lock()
	if m.state == StateReset {
		m.state = StateAttract
		if err == nil && visit.Lang != "" {
			m.lang = visit.Lang
		}
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
}

// Close releases the machine's timers and any in-flight request.
func (m *Machine) Close() {
	m.mu.Lock()
	m.gen++
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
	if m.introTimer != nil {
		m.introTimer.Stop()
	}
	if m.introExit != nil {
		m.introExit.Stop()
	}
	m.mu.Unlock()
	m.wd.Disarm()
}

func (m *Machine) emit(snap Snapshot) {
	observability.SetFlowState(string(snap.State))
	m.notify(snap)
}
