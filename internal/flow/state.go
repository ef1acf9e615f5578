// Package flow implements the kiosk session state machine: which screen
// is visible, the timers racing around it, and the reconciliation of
// streamed backend responses into conversation state.
package flow

// State identifies the active kiosk screen. Exactly one state is active
// at a time and every change moves through a defined edge.
type State string

const (
	// StateAttract is the idle loop shown before any engagement.
	StateAttract State = "ATTRACT"
	// StateLanguagePick shows the explicit language chooser.
	StateLanguagePick State = "LANGUAGE_PICK"
	// StateIntroWave plays the one-shot intro animation.
	StateIntroWave State = "INTRO_WAVE"
	// StateSearchReady shows the idle search surface.
	StateSearchReady State = "SEARCH_READY"
	// StateChat is the multi-turn conversation screen, including while
	// a response is streaming.
	StateChat State = "CHAT"
	// StateSearching is the single-shot variant's in-flight screen.
	StateSearching State = "SEARCHING"
	// StateAnswer shows a completed single-shot answer.
	StateAnswer State = "ANSWER"
	// StateClarify prompts the user to disambiguate their question.
	StateClarify State = "CLARIFY"
	// StateFeedback collects a rating for the last answer.
	StateFeedback State = "FEEDBACK"
	// StateReset is the transient teardown state between a session end
	// and the next attract loop.
	StateReset State = "RESET"
)

// transitions is the legal edge set. Reset is reachable from everywhere,
// so it is handled separately in CanEnter.
var transitions = map[State][]State{
	StateAttract:      {StateLanguagePick, StateIntroWave},
	StateLanguagePick: {StateIntroWave},
	StateIntroWave:    {StateSearchReady},
	StateSearchReady:  {StateChat, StateSearching},
	StateChat:         {StateChat, StateFeedback, StateClarify},
	StateSearching:    {StateAnswer, StateClarify},
	StateAnswer:       {StateFeedback, StateSearching, StateSearchReady},
	StateClarify:      {StateSearching, StateChat, StateSearchReady},
	StateFeedback:     {StateChat, StateSearching, StateClarify},
	StateReset:        {StateAttract},
}

// CanEnter reports whether next is a legal transition from s.
func (s State) CanEnter(next State) bool {
	if next == StateReset {
		return true
	}
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Engaged reports whether the state is part of an active visit. The
// inactivity watchdog is armed only in engaged states.
func (s State) Engaged() bool {
	switch s {
	case StateAttract, StateLanguagePick, StateIntroWave, StateReset:
		return false
	}
	return true
}

// ResetReason records why a reset happened, for logging and metrics.
type ResetReason string

const (
	// ResetUser is an explicit end-session action.
	ResetUser ResetReason = "user"
	// ResetInactivity is the watchdog firing after the idle threshold.
	ResetInactivity ResetReason = "inactivity"
	// ResetScheduled is the operator-configured nightly reset.
	ResetScheduled ResetReason = "scheduled"
	// ResetAuto is a machine-scheduled reset, fired after the thanks
	// screen or an error banner has been displayed long enough.
	ResetAuto ResetReason = "auto"
)
