package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ichs-dev/tayyib-kiosk/internal/avatar"
	"github.com/ichs-dev/tayyib-kiosk/internal/flow"
	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
)

// AskView renders single-shot snapshots: the rotating searching stages,
// the structured answer card and the rating screen.
type AskView struct {
	mu      sync.Mutex
	out     io.Writer
	pool    *avatar.Pool
	state   flow.State
	loop    avatar.State
	stage   int
	shown   bool
	thanked bool
}

// NewAskView creates a view writing to out.
func NewAskView(out io.Writer, pool *avatar.Pool) *AskView {
	return &AskView{out: out, pool: pool, stage: -1}
}

// Notify renders one snapshot. Pass it to the machine as its observer.
func (v *AskView) Notify(snap flow.AskSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	t := i18n.T(snap.Lang)

	if snap.State != v.state {
		v.state = snap.State
		v.stage = -1
		v.shown = false
		v.thanked = false
		v.screen(snap, t)
	}
	if loop := avatar.ForAsk(snap.State); loop != v.loop {
		v.loop = loop
		if v.pool != nil {
			if path := v.pool.Get(loop); path != "" {
				fmt.Fprintf(v.out, "  (loop: %s)\n", path)
			}
		}
	}

	if snap.State == flow.StateSearching && snap.Stage != v.stage {
		v.stage = snap.Stage
		fmt.Fprintf(v.out, "  %s\n", t.SearchingStages[snap.Stage%3])
	}
	if snap.State == flow.StateAnswer && !v.shown && snap.Answer != nil {
		v.shown = true
		v.answerCard(snap, t)
	}
	// a successful rating flips ThanksShown while the state stays put
	if snap.State == flow.StateFeedback && snap.ThanksShown && !v.thanked {
		v.thanked = true
		fmt.Fprintf(v.out, "\n%s\n", t.ThanksMessage)
	}
}

func (v *AskView) screen(snap flow.AskSnapshot, t *i18n.Table) {
	switch snap.State {
	case flow.StateAttract:
		fmt.Fprintf(v.out, "\n=== %s ===\n%s\n", t.AttractTitle, t.TapToStart)
	case flow.StateLanguagePick:
		fmt.Fprintf(v.out, "\n%s  (%s)\n", t.ChooseLanguage, langCodes())
	case flow.StateIntroWave:
		fmt.Fprintf(v.out, "\n%s\n", t.Greeting)
	case flow.StateSearchReady:
		fmt.Fprintf(v.out, "\n%s\n", t.SearchReadyPrompt)
		if len(t.TrendingQuestions) > 0 {
			fmt.Fprintf(v.out, "%s\n", t.TrendingTitle)
			for _, q := range t.TrendingQuestions {
				fmt.Fprintf(v.out, " - %s\n", q)
			}
		}
	case flow.StateClarify:
		if snap.Banner != "" {
			fmt.Fprintf(v.out, "\n[%s]\n", snap.Banner)
		}
		if snap.ClarifyText != "" {
			fmt.Fprintf(v.out, "\n%s %s\n", t.ClarifyTitle, snap.ClarifyText)
		}
		if len(snap.ClarifyChips) > 0 {
			fmt.Fprintf(v.out, "  %s\n", strings.Join(snap.ClarifyChips, " | "))
		}
	case flow.StateFeedback:
		if !snap.ThanksShown {
			fmt.Fprintf(v.out, "\n%s  (/rate 1-5)\n", t.FeedbackPrompt)
			if snap.Banner != "" {
				fmt.Fprintf(v.out, "[%s]\n", snap.Banner)
			}
		}
	}
}

func (v *AskView) answerCard(snap flow.AskSnapshot, t *i18n.Table) {
	resp := snap.Answer
	fmt.Fprintf(v.out, "\n%s\n  %s\n", t.DirectAnswer, resp.Answer.Direct)
	if resp.General() {
		fmt.Fprintf(v.out, "  ~ %s\n", t.GeneralDisclaimer)
	}
	if len(resp.Answer.Steps) > 0 {
		fmt.Fprintf(v.out, "%s\n", t.Steps)
		for i, step := range resp.Answer.Steps {
			fmt.Fprintf(v.out, "  %d. %s\n", i+1, step)
		}
	}
	if len(resp.Answer.Mistakes) > 0 {
		fmt.Fprintf(v.out, "%s\n", t.Mistakes)
		for _, m := range resp.Answer.Mistakes {
			fmt.Fprintf(v.out, "  ! %s\n", m)
		}
	}
	if len(resp.Sources) > 0 {
		fmt.Fprintf(v.out, "%s\n", t.Sources)
		for _, src := range resp.Sources {
			fmt.Fprintf(v.out, "  - %s\n", sourceLine(&src))
		}
	}
}

func langCodes() string {
	codes := make([]string, 0, len(i18n.Langs))
	for _, l := range i18n.Langs {
		codes = append(codes, string(l))
	}
	return strings.Join(codes, "/")
}
