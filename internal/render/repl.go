package render

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/ichs-dev/tayyib-kiosk/internal/flow"
	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
)

// ChatREPL drives the chat machine from a line editor. Every keystroke
// that submits a line counts as touchscreen activity.
type ChatREPL struct {
	machine *flow.Machine
}

// NewChatREPL creates a REPL around the machine.
func NewChatREPL(m *flow.Machine) *ChatREPL {
	return &ChatREPL{machine: m}
}

// Run reads lines until EOF or context cancellation. Ctrl-C ends the
// visit the way the on-screen end-session button does.
func (r *ChatREPL) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for _, chip := range i18n.T(r.machine.Snapshot().Lang).QuickChips {
		line.AppendHistory(chip)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		input, err := line.Prompt("? ")
		if errors.Is(err, liner.ErrPromptAborted) {
			r.machine.Reset(flow.ResetUser)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		r.machine.Touch()
		if r.dispatch(ctx, strings.TrimSpace(input)) {
			line.AppendHistory(input)
		}
	}
}

// dispatch interprets one input line against the current screen and
// reports whether it was a question worth keeping in history.
func (r *ChatREPL) dispatch(ctx context.Context, input string) bool {
	snap := r.machine.Snapshot()

	switch {
	case input == "/end":
		r.machine.Reset(flow.ResetUser)
	case strings.HasPrefix(input, "/lang "):
		if lang, err := i18n.Parse(strings.ToUpper(strings.TrimPrefix(input, "/lang "))); err == nil {
			_ = r.machine.SetLanguage(ctx, lang)
		}
	case input == "/yes" || input == "/no":
		if id := openFeedbackPrompt(snap); id != "" {
			r.machine.FeedbackThumb(ctx, id, input == "/yes")
		}
	case snap.State == flow.StateAttract || snap.State == flow.StateLanguagePick:
		// any touch wakes the attract loop
		_ = r.machine.TapToStart(ctx)
	case snap.State == flow.StateIntroWave:
		r.machine.SkipIntro()
	default:
		return r.machine.Submit(ctx, input)
	}
	return false
}

func openFeedbackPrompt(snap flow.Snapshot) string {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if msg := snap.Messages[i]; msg.IsFeedbackPrompt && !msg.FeedbackGiven {
			return msg.ID
		}
	}
	return ""
}

// AskREPL drives the single-shot machine from a line editor.
type AskREPL struct {
	machine *flow.AskMachine
}

// NewAskREPL creates a REPL around the machine.
func NewAskREPL(m *flow.AskMachine) *AskREPL {
	return &AskREPL{machine: m}
}

// Run reads lines until EOF or context cancellation.
func (r *AskREPL) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		input, err := line.Prompt("? ")
		if errors.Is(err, liner.ErrPromptAborted) {
			r.machine.Reset(flow.ResetUser)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		r.machine.Touch()
		if r.dispatch(ctx, strings.TrimSpace(input)) {
			line.AppendHistory(input)
		}
	}
}

func (r *AskREPL) dispatch(ctx context.Context, input string) bool {
	snap := r.machine.Snapshot()

	switch {
	case input == "/end":
		r.machine.Reset(flow.ResetUser)
	case strings.HasPrefix(input, "/rate "):
		if rating, err := strconv.Atoi(strings.TrimPrefix(input, "/rate ")); err == nil {
			r.machine.SubmitFeedback(ctx, rating)
		}
	case snap.State == flow.StateAttract:
		r.machine.TapToStart()
	case snap.State == flow.StateLanguagePick:
		if lang, err := i18n.Parse(strings.ToUpper(input)); err == nil {
			_ = r.machine.PickLanguage(ctx, lang)
		}
	case snap.State == flow.StateIntroWave:
		r.machine.SkipIntro()
	case snap.State == flow.StateAnswer:
		// a touch on the answer card moves straight to the rating
		r.machine.DwellElapsed()
	case snap.State == flow.StateClarify:
		return r.machine.Submit(ctx, input, true, matchChip(input, snap.ClarifyChips))
	default:
		return r.machine.Submit(ctx, input, false, "")
	}
	return false
}

// matchChip returns the chip the input refers to, either verbatim or by
// its 1-based position.
func matchChip(input string, chips []string) string {
	for _, chip := range chips {
		if strings.EqualFold(chip, input) {
			return chip
		}
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(chips) {
		return chips[n-1]
	}
	return ""
}
