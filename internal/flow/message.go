package flow

import (
	"github.com/google/uuid"

	"github.com/ichs-dev/tayyib-kiosk/pkg/kioskapi"
)

// Message is one conversation turn in the chat variant.
type Message struct {
	ID      string
	Role    string
	Content string

	// Attached once the terminal meta event arrives.
	Sources         []kioskapi.Source
	RefinementChips []string
	RouteUsed       string
	Confidence      float64
	GeneralMode     bool

	// IsStreaming is true while content is still being appended. A turn
	// moves streaming to non-streaming exactly once and never back.
	IsStreaming bool

	// IsFeedbackPrompt marks the injected "was this helpful?" turn.
	IsFeedbackPrompt bool
	// FeedbackGiven marks an answered feedback prompt.
	FeedbackGiven bool
}

func newUserMessage(content string) *Message {
	return &Message{
		ID:      uuid.New().String(),
		Role:    kioskapi.RoleUser,
		Content: content,
	}
}

func newStreamingMessage() *Message {
	return &Message{
		ID:          uuid.New().String(),
		Role:        kioskapi.RoleAssistant,
		IsStreaming: true,
	}
}

func newFeedbackPrompt(content string) *Message {
	return &Message{
		ID:               uuid.New().String(),
		Role:             kioskapi.RoleAssistant,
		Content:          content,
		IsFeedbackPrompt: true,
	}
}

// clone returns a copy safe to hand to read-only observers.
func (m *Message) clone() Message {
	c := *m
	c.Sources = append([]kioskapi.Source(nil), m.Sources...)
	c.RefinementChips = append([]string(nil), m.RefinementChips...)
	return c
}
