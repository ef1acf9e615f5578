// Package kioskapi is the HTTP client for the kiosk backend. The backend
// owns retrieval, ranking and generation; this package only speaks its
// wire contract: a line-oriented event stream for /api/chat and plain
// JSON for /api/ask and /api/feedback.
package kioskapi

// Role values for chat turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Backend-signaled error codes carried in meta / ask responses.
const (
	ErrCodeSessionLimit = "session_limit_reached"
	ErrCodeUngrounded   = "ungrounded_llm"
)

// Routes the backend reports for an answer.
const (
	RouteOffline  = "offline"
	RouteRAG      = "rag"
	RouteFallback = "fallback"
	RouteGeneral  = "general"
)

// ChatTurn is one message in the conversation history sent to /api/chat.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the /api/chat request body.
type ChatRequest struct {
	Lang      string     `json:"lang"`
	Messages  []ChatTurn `json:"messages"`
	SessionID string     `json:"session_id"`
}

// Source is a citation record attached to an answer.
type Source struct {
	Title     string `json:"title"`
	URLOrPath string `json:"url_or_path,omitempty"`
	URL       string `json:"url,omitempty"`
	Snippet   string `json:"snippet"`
	Relevance string `json:"relevance,omitempty"`
	Page      int    `json:"page,omitempty"`
	PageStart int    `json:"page_start,omitempty"`
	PageEnd   int    `json:"page_end,omitempty"`
}

// ChatMeta is the terminal metadata event of a chat stream.
type ChatMeta struct {
	Sources            []Source `json:"sources"`
	RefinementChips    []string `json:"refinement_chips"`
	RouteUsed          string   `json:"route_used"`
	Confidence         float64  `json:"confidence"`
	GeneralMode        bool     `json:"general_mode,omitempty"`
	ClarifyingQuestion string   `json:"clarifying_question,omitempty"`
	ErrorCode          string   `json:"error_code,omitempty"`
}

// SessionLimited reports whether the backend capped this visit.
func (m *ChatMeta) SessionLimited() bool {
	return m.ErrorCode == ErrCodeSessionLimit
}

// AskRequest is the /api/ask request body.
type AskRequest struct {
	Lang            string `json:"lang"`
	Query           string `json:"query"`
	SessionID       string `json:"session_id"`
	Clarified       bool   `json:"clarified"`
	ClarifierChoice string `json:"clarifier_choice,omitempty"`
}

// Answer is the structured answer body of an ask response.
type Answer struct {
	Direct   string   `json:"direct"`
	Steps    []string `json:"steps"`
	Mistakes []string `json:"mistakes"`
}

// AskResponse is the /api/ask response body.
type AskResponse struct {
	Answer             Answer   `json:"answer"`
	Sources            []Source `json:"sources"`
	Confidence         float64  `json:"confidence"`
	RefinementChips    []string `json:"refinement_chips,omitempty"`
	RouteUsed          string   `json:"route_used"`
	LatencyMS          int64    `json:"latency_ms"`
	ClarifyingQuestion string   `json:"clarifying_question,omitempty"`
	DebugNotes         string   `json:"debug_notes,omitempty"`
	ErrorCode          string   `json:"error_code,omitempty"`
	GeneralMode        bool     `json:"general_mode,omitempty"`
}

// General reports whether the answer came from general knowledge rather
// than the grounded corpus.
func (r *AskResponse) General() bool {
	return r.RouteUsed == RouteGeneral || r.GeneralMode || r.ErrorCode == ErrCodeUngrounded
}

// FeedbackRequest is the /api/feedback request body. Ratings are bounded
// 1-5; thumb feedback maps to the fixed values 5 and 2.
type FeedbackRequest struct {
	SessionID      string   `json:"session_id"`
	Rating         int      `json:"rating_1_5"`
	TimeOnScreenMS int64    `json:"time_on_screen_ms"`
	LastRouteUsed  string   `json:"last_route_used,omitempty"`
	LastConfidence *float64 `json:"last_confidence,omitempty"`
}
