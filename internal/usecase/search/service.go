package search

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vibematch/internal/domain"
	"github.com/kailas-cloud/vibematch/internal/domain/search/request"
	"github.com/kailas-cloud/vibematch/internal/domain/view"
	"github.com/kailas-cloud/vibematch/internal/metrics"
)

const lockStripes = 64

// Service drives view states: edits, suggestion picks and asynchronous
// submissions against the search backend.
type Service struct {
	store    StateStore
	searcher Searcher
	logger   *zap.Logger

	baseCtx context.Context
	timeout time.Duration

	locks [lockStripes]sync.Mutex
	wg    sync.WaitGroup
}

// New creates a view service.
func New(store StateStore, searcher Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		searcher: searcher,
		logger:   logger,
		baseCtx:  context.Background(),
	}
}

// WithTimeout bounds each background search. 0 disables the bound.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// WithBaseContext sets the parent context of background searches.
// Cancelling it aborts searches still in flight.
func (s *Service) WithBaseContext(ctx context.Context) *Service {
	s.baseCtx = ctx
	return s
}

// Mount creates a fresh view, optionally prefilled with a query, and returns its ID.
func (s *Service) Mount(ctx context.Context, prefill string) (string, error) {
	id := uuid.NewString()
	st := view.New()
	st.EditQuery(prefill)
	if err := s.store.Save(ctx, id, st); err != nil {
		return "", fmt.Errorf("save view: %w", err)
	}
	return id, nil
}

// Get returns the current state of a view.
func (s *Service) Get(ctx context.Context, id string) (view.State, error) {
	st, err := s.store.Load(ctx, id)
	if err != nil {
		return view.State{}, fmt.Errorf("load view: %w", err)
	}
	return st, nil
}

// EditQuery replaces the query text of a view.
func (s *Service) EditQuery(ctx context.Context, id, text string) (view.State, error) {
	return s.update(ctx, id, func(st *view.State) error {
		st.EditQuery(text)
		return nil
	})
}

// SelectSuggestion copies the n-th preset into the query without submitting.
func (s *Service) SelectSuggestion(ctx context.Context, id string, n int) (view.State, error) {
	return s.update(ctx, id, func(st *view.State) error {
		return st.SelectSuggestion(n)
	})
}

// Submit starts a search for the view's current query. A blank query is a
// silent no-op and reports false. A view already loading yields
// domain.ErrSubmitInFlight. Otherwise the view is saved as loading, the
// backend call runs in the background and Submit reports true.
func (s *Service) Submit(ctx context.Context, id string) (bool, error) {
	return s.submit(ctx, id, nil)
}

// SubmitQuery stores text as the query and submits it in one step. A view
// already loading keeps its in-flight query and yields domain.ErrSubmitInFlight.
func (s *Service) SubmitQuery(ctx context.Context, id, text string) (bool, error) {
	return s.submit(ctx, id, &text)
}

func (s *Service) submit(ctx context.Context, id string, text *string) (bool, error) {
	var (
		req   request.Request
		blank bool
	)
	_, err := s.update(ctx, id, func(st *view.State) error {
		if text != nil && !st.Loading() {
			st.EditQuery(*text)
		}
		var beginErr error
		req, beginErr = st.Begin()
		if errors.Is(beginErr, domain.ErrEmptyQuery) && text != nil {
			// Keep the edited text; there is nothing to search.
			blank = true
			return nil
		}
		return beginErr
	})
	switch {
	case blank && err == nil, errors.Is(err, domain.ErrEmptyQuery):
		metrics.SubmissionsTotal.WithLabelValues("empty").Inc()
		return false, nil
	case errors.Is(err, domain.ErrSubmitInFlight):
		metrics.SubmissionsTotal.WithLabelValues("in_flight").Inc()
		return false, err
	case err != nil:
		return false, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(id, req)
	}()
	return true, nil
}

// Wait blocks until every background search has settled.
func (s *Service) Wait() {
	s.wg.Wait()
}

// run performs the backend call and applies its outcome to the view.
func (s *Service) run(id string, req request.Request) {
	ctx := s.baseCtx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := otel.Tracer("vibematch/search").Start(ctx, "search.run")
	defer span.End()
	span.SetAttributes(attribute.String("view.id", id), attribute.Int("search.top_k", req.TopK()))

	start := time.Now()
	resp, searchErr := s.searcher.Search(ctx, req)
	if searchErr != nil {
		span.RecordError(searchErr)
		span.SetStatus(codes.Error, searchErr.Error())
	}
	log := s.logger.With(
		zap.String("view_id", id),
		zap.Duration("elapsed", time.Since(start)),
	)

	// Detached so an aborted search still records its failure.
	saveCtx := context.WithoutCancel(ctx)
	_, err := s.update(saveCtx, id, func(st *view.State) error {
		if !st.Loading() {
			return errNotLoading
		}
		if searchErr != nil {
			msg, _ := domain.BackendMessage(searchErr)
			st.Fail(msg)
			return nil
		}
		st.Succeed(resp)
		return nil
	})

	switch {
	case errors.Is(err, errNotLoading), errors.Is(err, domain.ErrViewNotFound):
		log.Debug("view changed before search settled", zap.Error(err))
	case err != nil:
		log.Error("failed to store search outcome", zap.Error(err))
	case searchErr != nil:
		metrics.SubmissionsTotal.WithLabelValues("failure").Inc()
		log.Warn("vibe search failed", zap.Error(searchErr))
	default:
		metrics.SubmissionsTotal.WithLabelValues("success").Inc()
		log.Debug("vibe search settled",
			zap.Int("results", len(resp.Results)),
			zap.Float64("latency_ms", resp.LatencyMS),
		)
	}
}

var errNotLoading = errors.New("view is not loading")

// update applies fn to the stored view under its stripe lock and saves the
// result. Nothing is saved when fn fails.
func (s *Service) update(ctx context.Context, id string, fn func(*view.State) error) (view.State, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	st, err := s.store.Load(ctx, id)
	if err != nil {
		return view.State{}, fmt.Errorf("load view: %w", err)
	}
	if err = fn(&st); err != nil {
		return st, err
	}
	if err = s.store.Save(ctx, id, st); err != nil {
		return view.State{}, fmt.Errorf("save view: %w", err)
	}
	return st, nil
}

func (s *Service) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}
