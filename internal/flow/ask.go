package flow

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ichs-dev/tayyib-kiosk/pkg/config"
	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
	"github.com/ichs-dev/tayyib-kiosk/pkg/kioskapi"
	"github.com/ichs-dev/tayyib-kiosk/pkg/observability"
	"github.com/ichs-dev/tayyib-kiosk/pkg/session"
)

// AskBackend is the slice of the backend client the single-shot machine
// needs.
type AskBackend interface {
	Ask(ctx context.Context, req *kioskapi.AskRequest) (*kioskapi.AskResponse, error)
	SendFeedback(ctx context.Context, req *kioskapi.FeedbackRequest) error
}

// AskSnapshot is a read-only view of the single-shot flow for renderers.
type AskSnapshot struct {
	State        State
	Lang         i18n.Lang
	Query        string
	Stage        int
	Answer       *kioskapi.AskResponse
	Banner       string
	ClarifyText  string
	ClarifyChips []string
	ThanksShown  bool
}

// AskMachine is the single-shot variant of the kiosk flow: one question,
// one structured answer, an explicit 1-5 rating, then reset. Unlike the
// chat variant it routes through an explicit language chooser.
type AskMachine struct {
	mu sync.Mutex

	backend AskBackend
	store   session.Store
	timing  config.TimingConfig
	log     *zap.Logger
	notify  func(AskSnapshot)

	state        State
	lang         i18n.Lang
	query        string
	stage        int
	answer       *kioskapi.AskResponse
	banner       string
	clarifyText  string
	clarifyChips []string
	thanksShown  bool

	// gen invalidates timer and request callbacks across resets.
	gen uint64

	wd         *watchdog
	stageStop  chan struct{}
	introTimer *time.Timer
	introExit  *time.Timer
	dwellTimer *time.Timer
	resetTimer *time.Timer
}

// AskOption configures an AskMachine.
type AskOption func(*AskMachine)

// WithAskLogger sets the machine logger.
func WithAskLogger(l *zap.Logger) AskOption {
	return func(m *AskMachine) { m.log = l }
}

// WithAskNotify registers the observer invoked after every state change.
func WithAskNotify(fn func(AskSnapshot)) AskOption {
	return func(m *AskMachine) { m.notify = fn }
}

// NewAskMachine creates a single-shot flow machine in the attract state.
func NewAskMachine(backend AskBackend, store session.Store, timing config.TimingConfig, lang i18n.Lang, opts ...AskOption) *AskMachine {
	m := &AskMachine{
		backend: backend,
		store:   store,
		timing:  timing,
		log:     zap.NewNop(),
		notify:  func(AskSnapshot) {},
		state:   StateAttract,
		lang:    lang,
	}
	for _, opt := range opts {
		opt(m)
	}
	// The single-shot screens have less motion, so idleness is checked
	// on a tighter tick than in the chat variant.
	tick := timing.WatchdogTick / 5
	if tick <= 0 {
		tick = timing.WatchdogTick
	}
	m.wd = newWatchdog(timing.Inactivity, tick, func() {
		m.Reset(ResetInactivity)
	})
	return m
}

// Snapshot returns a read-only copy of the current flow state.
func (m *AskMachine) Snapshot() AskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *AskMachine) snapshotLocked() AskSnapshot {
	return AskSnapshot{
		State:        m.state,
		Lang:         m.lang,
		Query:        m.query,
		Stage:        m.stage,
		Answer:       m.answer,
		Banner:       m.banner,
		ClarifyText:  m.clarifyText,
		ClarifyChips: m.clarifyChips,
		ThanksShown:  m.thanksShown,
	}
}

// Touch records user activity for the inactivity watchdog.
func (m *AskMachine) Touch() {
	m.wd.Touch()
}

// TapToStart advances the attract loop to the language chooser.
func (m *AskMachine) TapToStart() {
	m.mu.Lock()
	if !m.state.CanEnter(StateLanguagePick) {
		m.mu.Unlock()
		return
	}
	m.state = StateLanguagePick
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
}

// PickLanguage locks the visit language and plays the intro animation.
func (m *AskMachine) PickLanguage(ctx context.Context, lang i18n.Lang) error {
	m.mu.Lock()
	if !m.state.CanEnter(StateIntroWave) {
		m.mu.Unlock()
		return nil
	}
	m.lang = lang
	m.state = StateIntroWave
	m.wd.Disarm()
	gen := m.gen
	m.introTimer = time.AfterFunc(m.timing.IntroDuration, func() {
		m.skipIntro(gen)
	})
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.SetLanguage(ctx, lang, true); err != nil {
		return err
	}
	m.emit(snap)
	return nil
}

// SkipIntro ends the intro animation early on a tap.
func (m *AskMachine) SkipIntro() {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.skipIntro(gen)
}

func (m *AskMachine) skipIntro(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateIntroWave {
		m.mu.Unlock()
		return
	}
	if m.introTimer != nil {
		m.introTimer.Stop()
		m.introTimer = nil
	}
	if m.introExit != nil {
		m.mu.Unlock()
		return
	}
	m.introExit = time.AfterFunc(m.timing.IntroExitDelay, func() {
		m.mu.Lock()
		if gen != m.gen || m.state != StateIntroWave {
			m.mu.Unlock()
			return
		}
		m.state = StateSearchReady
		m.introExit = nil
		m.wd.Arm()
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.emit(snap)
	})
	m.mu.Unlock()
}

// Submit sends one question to the backend. clarified marks a retry after
// the visitor answered a clarifying question, with choice carrying the
// chip they tapped. Reports whether the submission was accepted.
func (m *AskMachine) Submit(ctx context.Context, text string, clarified bool, choice string) bool {
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
	if !m.state.CanEnter(StateSearching) {
		m.mu.Unlock()
		return false
	}
	m.state = StateSearching
	m.query = text
	m.answer = nil
	m.banner = ""
	m.clarifyText = ""
	m.clarifyChips = nil
	m.stage = 0
	gen := m.gen
	lang := m.lang
	m.startStagesLocked(gen)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.wd.Touch()
	observability.RecordQuery("ask")
	m.emit(snap)

	go m.lookup(gen, &kioskapi.AskRequest{
		Lang:            string(lang),
		Query:           text,
		SessionID:       visit.ID,
		Clarified:       clarified,
		ClarifierChoice: choice,
	})
	return true
}

// startStagesLocked rotates the searching status line while the request
// is in flight.
func (m *AskMachine) startStagesLocked(gen uint64) {
	stop := make(chan struct{})
	m.stageStop = stop
	go func() {
		ticker := time.NewTicker(m.timing.StageInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.mu.Lock()
				if gen != m.gen || m.state != StateSearching {
					m.mu.Unlock()
					return
				}
				m.stage = (m.stage + 1) % 3
				snap := m.snapshotLocked()
				m.mu.Unlock()
				m.notify(snap)
			}
		}
	}()
}

func (m *AskMachine) stopStagesLocked() {
	if m.stageStop != nil {
		close(m.stageStop)
		m.stageStop = nil
	}
}

// lookup runs the backend request and reconciles its outcome.
func (m *AskMachine) lookup(gen uint64, req *kioskapi.AskRequest) {
	start := time.Now()
	// No deadline here: the client owns the request timeout and tags
	// expiry accordingly.
	resp, err := m.backend.Ask(context.Background(), req)
	observability.RecordQueryDuration("ask", time.Since(start))

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.stopStagesLocked()

	t := i18n.T(m.lang)
	switch {
	case err != nil || (resp.ErrorCode != "" && resp.ErrorCode != kioskapi.ErrCodeUngrounded):
		// An ungrounded answer is still shown (with a disclaimer); any
		// other backend-reported error falls back to a banner and an
		// automatic return to attract.
		m.banner = t.ServiceUnavailable
		if err != nil && kioskapi.IsTimeout(err) {
			m.banner = t.RequestTimedOut
		}
		m.state = StateClarify
		m.clarifyText = t.TryAgain
		m.armResetLocked(gen, m.timing.ErrorResetDelay)
	case resp.ClarifyingQuestion != "" && strings.TrimSpace(resp.Answer.Direct) == "":
		m.state = StateClarify
		m.clarifyText = resp.ClarifyingQuestion
		m.clarifyChips = clarifyChips(resp.RefinementChips, req.Query)
	default:
		m.answer = resp
		m.state = StateAnswer
		m.armDwellLocked(gen)
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err != nil && !kioskapi.IsCanceled(err) {
		m.log.Warn("ask request failed", zap.Error(err))
	}
	m.emit(snap)
}

// clarifyChips picks the disambiguation options shown under a clarifying
// question: the backend's refinement chips when present, otherwise a
// topic-guessed set keyed off the query text.
func clarifyChips(chips []string, query string) []string {
	if len(chips) > 3 {
		chips = chips[:3]
	}
	if len(chips) > 0 {
		return chips
	}
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "ihram") || strings.Contains(query, "الإحرام"):
		return []string{"Ihram rules", "Miqat crossing", "Passed miqat"}
	case strings.Contains(q, "rawdah") || strings.Contains(query, "الروضة"):
		return []string{"Rawdah booking", "Visit rules", "Permit timing"}
	}
	return []string{"Umrah steps", "Nusuk permit", "Rawdah visit"}
}

// DwellElapsed moves a displayed answer into the rating screen. The dwell
// timer calls it; a renderer may also call it directly on a tap.
func (m *AskMachine) DwellElapsed() {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.dwellElapsed(gen)
}

func (m *AskMachine) dwellElapsed(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateAnswer {
		m.mu.Unlock()
		return
	}
	m.state = StateFeedback
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
}

// SubmitFeedback records a 1-5 rating for the shown answer, thanks the
// visitor and schedules the reset. A failed submission keeps the rating
// screen with an error banner instead.
func (m *AskMachine) SubmitFeedback(ctx context.Context, rating int) {
	if rating < 1 || rating > 5 {
		return
	}
	m.wd.Touch()

	m.mu.Lock()
	if m.state != StateFeedback || m.thanksShown {
		m.mu.Unlock()
		return
	}
	gen := m.gen
	answer := m.answer
	m.mu.Unlock()

	visit, err := m.store.Current(ctx)
	if err != nil {
		m.log.Debug("feedback without visit", zap.Error(err))
		return
	}

	req := &kioskapi.FeedbackRequest{
		SessionID:      visit.ID,
		Rating:         rating,
		TimeOnScreenMS: time.Since(visit.StartedAt).Milliseconds(),
	}
	if answer != nil {
		req.LastRouteUsed = answer.RouteUsed
		conf := answer.Confidence
		req.LastConfidence = &conf
	}
	sendErr := m.backend.SendFeedback(ctx, req)

	m.mu.Lock()
	if gen != m.gen || m.state != StateFeedback {
		m.mu.Unlock()
		return
	}
	if sendErr != nil {
		m.banner = i18n.T(m.lang).ServiceUnavailable
		m.state = StateClarify
	} else {
		observability.RecordFeedback(rating)
		m.thanksShown = true
		m.banner = ""
		m.armResetLocked(gen, m.timing.ThanksResetDelay)
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if sendErr != nil {
		m.log.Warn("feedback submission failed", zap.Error(sendErr))
	}
	m.emit(snap)
}

// armResetLocked schedules an automatic reset after delay.
func (m *AskMachine) armResetLocked(gen uint64, delay time.Duration) {
	if m.resetTimer != nil {
		m.resetTimer.Stop()
	}
	m.resetTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		stale := gen != m.gen
		m.mu.Unlock()
		if !stale {
			m.Reset(ResetAuto)
		}
	})
}

// armDwellLocked schedules the answer-to-rating transition.
func (m *AskMachine) armDwellLocked(gen uint64) {
	if m.dwellTimer != nil {
		m.dwellTimer.Stop()
	}
	m.dwellTimer = time.AfterFunc(m.timing.AnswerDwell, func() {
		m.dwellElapsed(gen)
	})
}

// Reset tears the visit down and returns to the attract loop.
func (m *AskMachine) Reset(reason ResetReason) {
	m.mu.Lock()
	m.gen++
	m.stopStagesLocked()
	for _, t := range []*time.Timer{m.introTimer, m.introExit, m.dwellTimer, m.resetTimer} {
		if t != nil {
			t.Stop()
		}
	}
	m.introTimer, m.introExit, m.dwellTimer, m.resetTimer = nil, nil, nil, nil
	m.wd.Disarm()

	m.state = StateReset
	m.query = ""
	m.stage = 0
	m.answer = nil
	m.banner = ""
	m.clarifyText = ""
	m.clarifyChips = nil
	m.thanksShown = false
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
	if err != nil {
		m.log.Warn("session recreate failed", zap.Error(err))
	}

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

// Close releases the machine's timers.
func (m *AskMachine) Close() {
	m.mu.Lock()
	m.gen++
	m.stopStagesLocked()
	for _, t := range []*time.Timer{m.introTimer, m.introExit, m.dwellTimer, m.resetTimer} {
		if t != nil {
			t.Stop()
		}
	}
	m.mu.Unlock()
	m.wd.Disarm()
}

func (m *AskMachine) emit(snap AskSnapshot) {
	observability.SetFlowState(string(snap.State))
	m.notify(snap)
}
