package view

import (
	"fmt"

	"github.com/kailas-cloud/vibematch/internal/domain"
)

// Suggestion is a preset vibe query. Emoji and Background are display only.
type Suggestion struct {
	Text       string
	Emoji      string
	Background string
}

var suggestions = [...]Suggestion{
	{Text: "energetic urban chic", Emoji: "⚡", Background: "linear-gradient(to bottom right, #ddd6fe, #e9d5ff)"},
	{Text: "cozy comfortable", Emoji: "☁️", Background: "linear-gradient(to bottom right, #fed7aa, #fde68a)"},
	{Text: "elegant formal", Emoji: "💎", Background: "linear-gradient(to bottom right, #bfdbfe, #dbeafe)"},
	{Text: "beach summer", Emoji: "🌊", Background: "linear-gradient(to bottom right, #99f6e4, #d1fae5)"},
}

// Suggestions returns the preset vibe queries in display order.
func Suggestions() []Suggestion {
	out := make([]Suggestion, len(suggestions))
	copy(out, suggestions[:])
	return out
}

// SuggestionAt returns the n-th preset.
func SuggestionAt(n int) (Suggestion, error) {
	if n < 0 || n >= len(suggestions) {
		return Suggestion{}, fmt.Errorf("%w: index %d (have %d)", domain.ErrInvalidSuggestion, n, len(suggestions))
	}
	return suggestions[n], nil
}
