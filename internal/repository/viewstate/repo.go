package viewstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/vibematch/internal/db"
	"github.com/kailas-cloud/vibematch/internal/domain"
	"github.com/kailas-cloud/vibematch/internal/domain/search/result"
	"github.com/kailas-cloud/vibematch/internal/domain/view"
)

// DefaultKeyPrefix namespaces view keys in the shared store.
const DefaultKeyPrefix = "vibematch:view:"

// store is the consumer interface for view persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Repo keeps view states as JSON documents in a key-value store.
// Every save refreshes the TTL, so an abandoned view expires on its own.
type Repo struct {
	store  store
	ttl    time.Duration
	prefix string
}

// New creates a view repository.
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl, prefix: DefaultKeyPrefix}
}

// WithKeyPrefix overrides the key namespace.
func (r *Repo) WithKeyPrefix(prefix string) *Repo {
	if prefix != "" {
		r.prefix = prefix
	}
	return r
}

// Load returns the state of view id.
func (r *Repo) Load(ctx context.Context, id string) (view.State, error) {
	data, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return view.State{}, fmt.Errorf("view %s: %w", id, domain.ErrViewNotFound)
		}
		return view.State{}, fmt.Errorf("load view %s: %w", id, err)
	}

	var st view.State
	if err := json.Unmarshal(data, &st); err != nil {
		return view.State{}, fmt.Errorf("decode view %s: %w", id, err)
	}
	if !st.Phase.IsValid() {
		return view.State{}, fmt.Errorf("decode view %s: unknown phase %q", id, st.Phase)
	}
	if st.Results == nil {
		st.Results = []result.Product{}
	}
	return st, nil
}

// Save stores the state of view id.
func (r *Repo) Save(ctx context.Context, id string, st view.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode view %s: %w", id, err)
	}
	if err := r.store.SetWithTTL(ctx, r.key(id), data, r.ttl); err != nil {
		return fmt.Errorf("save view %s: %w", id, err)
	}
	return nil
}

// Ping checks the backing store.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("view store ping: %w", err)
	}
	return nil
}

func (r *Repo) key(id string) string {
	return r.prefix + id
}
