// Package render draws the kiosk flow on a terminal. It is the
// development and smoke-test surface for the flow machines: the real
// kiosk puts a touchscreen in front of the same snapshots.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ichs-dev/tayyib-kiosk/internal/avatar"
	"github.com/ichs-dev/tayyib-kiosk/internal/flow"
	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
	"github.com/ichs-dev/tayyib-kiosk/pkg/kioskapi"
)

// ChatView incrementally echoes chat snapshots: streamed tokens are
// printed as they arrive, screen changes as banner lines.
type ChatView struct {
	mu      sync.Mutex
	out     io.Writer
	pool    *avatar.Pool
	state   flow.State
	loop    avatar.State
	printed map[string]int
	noted   map[string]bool
	limited bool
}

// NewChatView creates a view writing to out. pool may be nil when no
// local avatar assets are mounted.
func NewChatView(out io.Writer, pool *avatar.Pool) *ChatView {
	return &ChatView{
		out:     out,
		pool:    pool,
		printed: make(map[string]int),
		noted:   make(map[string]bool),
	}
}

// Notify renders one snapshot. Pass it to the machine as its observer.
func (v *ChatView) Notify(snap flow.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if snap.State != v.state {
		v.state = snap.State
		v.banner(snap)
	}
	if loop := avatar.ForChat(snap.State); loop != v.loop {
		v.loop = loop
		v.loopLine(loop)
	}
	if snap.State == flow.StateReset || snap.State == flow.StateAttract {
		v.printed = make(map[string]int)
		v.noted = make(map[string]bool)
		v.limited = false
		return
	}

	for _, msg := range snap.Messages {
		v.renderMessage(&msg, snap.Lang)
	}

	// the session-limit meta flips the flag without a state change
	if snap.SessionLimited && !v.limited {
		v.limited = true
		fmt.Fprintf(v.out, "\n[%s]\n", i18n.T(snap.Lang).SessionLimit)
	}
}

func (v *ChatView) renderMessage(msg *flow.Message, lang i18n.Lang) {
	switch {
	case msg.Role == kioskapi.RoleUser:
		if !v.noted[msg.ID] {
			v.noted[msg.ID] = true
			fmt.Fprintf(v.out, "\n> %s\n", msg.Content)
		}
	case msg.IsFeedbackPrompt:
		if !v.noted[msg.ID] {
			v.noted[msg.ID] = true
			fmt.Fprintf(v.out, "\n[%s]  (/yes /no)\n", msg.Content)
		} else if msg.FeedbackGiven && !v.noted[msg.ID+"/answered"] {
			v.noted[msg.ID+"/answered"] = true
			fmt.Fprintf(v.out, "[%s]\n", msg.Content)
		}
	default:
		done := v.printed[msg.ID]
		if len(msg.Content) > done {
			fmt.Fprint(v.out, msg.Content[done:])
			v.printed[msg.ID] = len(msg.Content)
		}
		if !msg.IsStreaming && !v.noted[msg.ID+"/meta"] {
			v.noted[msg.ID+"/meta"] = true
			fmt.Fprintln(v.out)
			v.renderMeta(msg, lang)
		}
	}
}

func (v *ChatView) renderMeta(msg *flow.Message, lang i18n.Lang) {
	t := i18n.T(lang)
	if msg.GeneralMode || msg.RouteUsed == kioskapi.RouteGeneral {
		fmt.Fprintf(v.out, "  ~ %s\n", t.GeneralDisclaimer)
	}
	if len(msg.Sources) > 0 {
		fmt.Fprintf(v.out, "  %s:\n", t.Sources)
		for _, src := range msg.Sources {
			fmt.Fprintf(v.out, "   - %s\n", sourceLine(&src))
		}
	}
	if len(msg.RefinementChips) > 0 {
		fmt.Fprintf(v.out, "  %s: %s\n", t.FollowupTitle, strings.Join(msg.RefinementChips, " | "))
	}
}

func (v *ChatView) banner(snap flow.Snapshot) {
	t := i18n.T(snap.Lang)
	switch snap.State {
	case flow.StateAttract:
		fmt.Fprintf(v.out, "\n=== %s ===\n%s\n", t.AttractTitle, t.TapToStart)
	case flow.StateIntroWave:
		fmt.Fprintf(v.out, "\n%s\n", t.Greeting)
	case flow.StateSearchReady:
		fmt.Fprintf(v.out, "\n%s\n%s\n", t.SearchReadyPrompt, t.ScopeBanner)
	}
}

func (v *ChatView) loopLine(loop avatar.State) {
	if v.pool == nil {
		return
	}
	if path := v.pool.Get(loop); path != "" {
		fmt.Fprintf(v.out, "  (loop: %s)\n", path)
	}
}

func sourceLine(src *kioskapi.Source) string {
	ref := src.URL
	if ref == "" {
		ref = src.URLOrPath
	}
	if ref == "" {
		return src.Title
	}
	return src.Title + " (" + ref + ")"
}
