package search

import (
	"context"

	"github.com/kailas-cloud/vibematch/internal/domain/search/request"
	"github.com/kailas-cloud/vibematch/internal/domain/search/result"
	"github.com/kailas-cloud/vibematch/internal/domain/view"
)

// StateStore persists view states by ID.
type StateStore interface {
	Load(ctx context.Context, id string) (view.State, error)
	Save(ctx context.Context, id string, st view.State) error
}

// Searcher runs one vibe query against the search backend.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Response, error)
}
