// Package render turns a view state into a page model. It is a pure function
// of the state; transports only lay the model out.
package render

import (
	"math"
	"strconv"

	"github.com/kailas-cloud/vibematch/internal/domain/view"
)

// FallbackIcon is used for result positions beyond the icon table.
const FallbackIcon = "🛍️"

var icons = [...]string{"👗", "🧥", "👕"}

// Banner markers.
const (
	ErrorMarker   = "❌"
	LatencyMarker = "⚡"
)

// Card is one rendered product.
type Card struct {
	ID          int
	Icon        string
	Score       string
	Name        string
	Description string
	Tags        []string
	Price       string
}

// SuggestionItem is a clickable preset with its position.
type SuggestionItem struct {
	Index int
	view.Suggestion
}

// Page is everything a transport needs to lay out a view.
type Page struct {
	Query           string
	Loading         bool
	SubmitLabel     string
	ErrorBanner     string
	LatencyBanner   string
	ShowSuggestions bool
	Suggestions     []SuggestionItem
	ResultsHeading  string
	Cards           []Card
}

// Build renders st.
func Build(st view.State) Page {
	p := Page{
		Query:       st.Query,
		Loading:     st.Loading(),
		SubmitLabel: "🔍",
	}
	if p.Loading {
		p.SubmitLabel = "⏳"
	}

	if st.Error != "" {
		p.ErrorBanner = ErrorMarker + " " + st.Error
	}
	// A zero latency is treated as absent.
	if st.LastLatency != nil && *st.LastLatency != 0 {
		p.LatencyBanner = LatencyMarker + " Found in " + FormatLatency(*st.LastLatency) + "ms"
	}

	if len(st.Results) == 0 && !p.Loading {
		p.ShowSuggestions = true
		for i, sg := range view.Suggestions() {
			p.Suggestions = append(p.Suggestions, SuggestionItem{Index: i, Suggestion: sg})
		}
	}

	if len(st.Results) > 0 {
		p.ResultsHeading = "🛒 Results for \"" + st.Query + "\""
		p.Cards = make([]Card, len(st.Results))
		for i, prod := range st.Results {
			tags := make([]string, len(prod.VibeTags))
			for j, tag := range prod.VibeTags {
				tags[j] = "#" + tag
			}
			p.Cards[i] = Card{
				ID:          prod.ID,
				Icon:        Icon(i),
				Score:       FormatScore(prod.SimilarityScore),
				Name:        prod.Name,
				Description: prod.Description,
				Tags:        tags,
				Price:       FormatPrice(prod.Price),
			}
		}
	}

	return p
}

// Icon returns the card icon for a result position.
func Icon(i int) string {
	if i < 0 || i >= len(icons) {
		return FallbackIcon
	}
	return icons[i]
}

// FormatScore renders a similarity score as a whole percentage.
func FormatScore(score float64) string {
	return strconv.FormatFloat(math.Round(score*100), 'f', 0, 64) + "%"
}

// FormatLatency renders milliseconds rounded to a whole number.
func FormatLatency(ms float64) string {
	return strconv.FormatFloat(math.Round(ms), 'f', 0, 64)
}

// FormatPrice renders the literal price with no currency formatting.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
