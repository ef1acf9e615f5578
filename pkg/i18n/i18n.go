// Package i18n provides the kiosk string tables for the supported
// display languages.
package i18n

import "fmt"

// Lang identifies a display language.
type Lang string

// Supported display languages.
const (
	LangEN Lang = "EN"
	LangAR Lang = "AR"
	LangFR Lang = "FR"
)

// Langs lists all supported languages in display order.
var Langs = []Lang{LangEN, LangAR, LangFR}

// Parse validates a raw language code.
func Parse(s string) (Lang, error) {
	switch Lang(s) {
	case LangEN, LangAR, LangFR:
		return Lang(s), nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// RTL reports whether the language renders right-to-left.
func (l Lang) RTL() bool {
	return l == LangAR
}

// Table holds every user-visible string for one language.
type Table struct {
	Greeting           string
	AttractTitle       string
	AttractPrompt      string
	TapToStart         string
	ChooseLanguage     string
	SearchReadyPrompt  string
	ScopeBanner        string
	NoPersonalData     string
	SearchPlaceholder  string
	SearchButton       string
	ClearButton        string
	SendButton         string
	ChatPlaceholder    string
	EndSession         string
	SearchingStages    [3]string
	QuickChips         []string
	TrendingTitle      string
	TrendingQuestions  []string
	DirectAnswer       string
	Steps              string
	Mistakes           string
	FollowupTitle      string
	ClarifyTitle       string
	FeedbackPrompt     string
	ThanksMessage      string
	GroundedLabel      string
	LimitedSources     string
	GeneralDisclaimer  string
	ShowMore           string
	ShowLess           string
	LocalSource        string
	OpenPDF            string
	Sources            string
	ServiceUnavailable string
	RequestTimedOut    string
	TryAgain           string
	AssistantTyping    string
	FeedbackHelp       string
	FeedbackMore       string
	FeedbackYes        string
	FeedbackNo         string
	SessionLimit       string
	FooterDisclaimer   string
}

// T returns the string table for the language, falling back to English
// for unknown codes so the kiosk never renders empty labels.
func T(l Lang) *Table {
	if t, ok := tables[l]; ok {
		return t
	}
	return tables[LangEN]
}
