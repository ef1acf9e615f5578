// Package avatar maps kiosk flow states to the guide character's video
// loops and resolves their asset paths.
package avatar

import (
	"strings"

	"github.com/ichs-dev/tayyib-kiosk/internal/flow"
)

// State identifies one animation loop of the guide character.
type State string

const (
	StateHomeHero    State = "home_hero"
	StateIntroWave   State = "intro_wave"
	StateIdle        State = "idle"
	StateListening   State = "listening"
	StateSearching   State = "searching"
	StateExplainingA State = "explaining_a"
	StateExplainingB State = "explaining_b"
	StatePoseA       State = "pose_a"
	StatePoseB       State = "pose_b"
)

// States lists every loop in display order.
func States() []State {
	return []State{
		StateHomeHero, StateIntroWave, StateIdle, StateListening,
		StateSearching, StateExplainingA, StateExplainingB,
		StatePoseA, StatePoseB,
	}
}

// DefaultBasePath is where the loop assets live unless configured.
const DefaultBasePath = "/assets/tayyib_loops/"

// Clip is one playable loop with both container variants. Players that
// cannot decode VP9 fall back to the MP4.
type Clip struct {
	State State
	WebM  string
	MP4   string
}

// filenames maps a loop to its asset base name. The intro wave loop
// ships under the attract asset name.
func filename(s State) string {
	if s == StateIntroWave {
		return "attract"
	}
	return string(s)
}

// Catalog resolves clip asset paths under a base path.
type Catalog struct {
	basePath string
}

// NewCatalog creates a catalog rooted at basePath, defaulting to
// DefaultBasePath and normalizing the trailing slash.
func NewCatalog(basePath string) *Catalog {
	if strings.TrimSpace(basePath) == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	return &Catalog{basePath: basePath}
}

// Clip returns the asset pair for a loop.
func (c *Catalog) Clip(s State) Clip {
	name := filename(s)
	return Clip{
		State: s,
		WebM:  c.basePath + name + ".webm",
		MP4:   c.basePath + name + ".mp4",
	}
}

// ForChat maps a chat-variant flow state to a loop. The attract screen
// plays the same waving loop as the intro; a streaming or rated answer
// shows the searching motion.
func ForChat(s flow.State) State {
	switch s {
	case flow.StateAttract, flow.StateIntroWave:
		return StateIntroWave
	case flow.StateChat, flow.StateFeedback:
		return StateSearching
	}
	return StateIdle
}

// ForAsk maps a single-shot flow state to a loop.
func ForAsk(s flow.State) State {
	switch s {
	case flow.StateAttract:
		return StateHomeHero
	case flow.StateIntroWave:
		return StateIntroWave
	case flow.StateSearching:
		return StateSearching
	case flow.StateAnswer:
		return StateExplainingA
	case flow.StateClarify:
		return StateListening
	}
	return StateIdle
}
