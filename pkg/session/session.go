// Package session persists the kiosk's per-visit state: one session
// identifier, its start time, and the locked display language. Everything
// is written and cleared as a unit; a visit ends when the store is cleared.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
)

// ErrNoVisit is returned when no visit is currently persisted.
var ErrNoVisit = errors.New("no active visit")

// Visit is the persisted state of one walk-up visit.
type Visit struct {
	// ID is the opaque session identifier sent with every backend call.
	ID string `json:"id"`

	// StartedAt is used to compute dwell time for feedback telemetry.
	StartedAt time.Time `json:"started_at"`

	// Lang is the selected display language.
	Lang i18n.Lang `json:"lang"`

	// LangLocked is set once a language is chosen; the picker stays
	// hidden for the remainder of the visit.
	LangLocked bool `json:"lang_locked"`
}

// Store abstracts visit persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Ensure returns the current visit, creating one if none exists.
	Ensure(ctx context.Context) (*Visit, error)

	// Current retrieves the active visit.
	// Returns ErrNoVisit if none exists.
	Current(ctx context.Context) (*Visit, error)

	// SetLanguage records the chosen language, optionally locking it
	// for the rest of the visit.
	SetLanguage(ctx context.Context, lang i18n.Lang, lock bool) error

	// Clear removes the visit and all its keys together.
	Clear(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
