package request

import (
	"strings"

	"github.com/kailas-cloud/vibematch/internal/domain"
)

// TopK is the number of products requested for every vibe query.
const TopK = 3

// Request is a validated vibe search request.
type Request struct {
	query string
	topK  int
}

// New validates a vibe query. The query is sent as typed; trimming only
// decides whether it is blank.
func New(query string) (Request, error) {
	if strings.TrimSpace(query) == "" {
		return Request{}, domain.ErrEmptyQuery
	}
	return Request{query: query, topK: TopK}, nil
}

// Query returns the query text.
func (r *Request) Query() string { return r.query }

// TopK returns the number of requested products.
func (r *Request) TopK() int { return r.topK }
