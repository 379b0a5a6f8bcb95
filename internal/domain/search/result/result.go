package result

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/vibematch/internal/domain"
)

// Product is a single catalogue item returned by the search backend.
type Product struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Price           float64  `json:"price"`
	VibeTags        []string `json:"vibe_tags"`
	SimilarityScore float64  `json:"similarity_score"`
}

// Response is a decoded search backend answer. Results keep backend order.
type Response struct {
	Query     string
	Results   []Product
	Count     int
	LatencyMS float64
}

// Validate checks the semantic shape of a response. Count is informational
// and is not compared with len(Results). Scores are raw similarities and may
// sit slightly outside [0,1]; names may be empty.
func (r *Response) Validate() error {
	if !finite(r.LatencyMS) || r.LatencyMS < 0 {
		return fmt.Errorf("%w: latency_ms %v", domain.ErrMalformedResponse, r.LatencyMS)
	}

	seen := make(map[int]struct{}, len(r.Results))
	for i := range r.Results {
		p := &r.Results[i]
		if !finite(p.SimilarityScore) {
			return fmt.Errorf("%w: results[%d] similarity_score %v",
				domain.ErrMalformedResponse, i, p.SimilarityScore)
		}
		if !finite(p.Price) {
			return fmt.Errorf("%w: results[%d] price %v", domain.ErrMalformedResponse, i, p.Price)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate product id %d", domain.ErrMalformedResponse, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Clone returns a deep copy of products.
func Clone(products []Product) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		out[i] = p
		if p.VibeTags != nil {
			out[i].VibeTags = append([]string(nil), p.VibeTags...)
		}
	}
	return out
}
