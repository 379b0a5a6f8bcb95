// Package view models the state of a single vibe search page.
//
// A view moves through Idle -> Loading -> Success | Failure and back to
// Loading on the next submission. The latency of the last successful search
// is tracked separately: it survives new submissions and failures, so a
// stale latency from an earlier success may still be shown next to an error.
package view

import (
	"github.com/kailas-cloud/vibematch/internal/domain"
	"github.com/kailas-cloud/vibematch/internal/domain/search/request"
	"github.com/kailas-cloud/vibematch/internal/domain/search/result"
)

// FallbackError is shown when a search fails without a backend-supplied message.
const FallbackError = "Failed to fetch results"

// Phase is the lifecycle stage of a view.
type Phase string

// Phase constants.
const (
	Idle    Phase = "idle"
	Loading Phase = "loading"
	Success Phase = "success"
	Failure Phase = "failure"
)

// IsValid checks if the phase is one of the known values.
func (p Phase) IsValid() bool {
	return p == Idle || p == Loading || p == Success || p == Failure
}

// State is the full UI state of one view.
type State struct {
	Query       string           `json:"query"`
	Phase       Phase            `json:"phase"`
	Results     []result.Product `json:"results"`
	Error       string           `json:"error,omitempty"`
	LastLatency *float64         `json:"latency_ms,omitempty"`
}

// New returns the state of a freshly mounted view.
func New() State {
	return State{Phase: Idle, Results: []result.Product{}}
}

// Loading reports whether a search is in flight.
func (s *State) Loading() bool { return s.Phase == Loading }

// EditQuery replaces the query text. No validation happens at edit time.
func (s *State) EditQuery(text string) {
	s.Query = text
}

// SelectSuggestion copies the n-th preset into the query. It never submits.
func (s *State) SelectSuggestion(n int) error {
	sg, err := SuggestionAt(n)
	if err != nil {
		return err
	}
	s.EditQuery(sg.Text)
	return nil
}

// Begin starts a submission. A blank query yields domain.ErrEmptyQuery and a
// view already loading yields domain.ErrSubmitInFlight; neither changes state.
// On success the view is Loading with results and error cleared, and the
// returned request must be sent exactly once.
func (s *State) Begin() (request.Request, error) {
	req, err := request.New(s.Query)
	if err != nil {
		return request.Request{}, err
	}
	if s.Loading() {
		return request.Request{}, domain.ErrSubmitInFlight
	}

	s.Phase = Loading
	s.Error = ""
	s.Results = []result.Product{}
	return req, nil
}

// Succeed applies a backend response in its given order.
func (s *State) Succeed(resp result.Response) {
	latency := resp.LatencyMS
	s.Phase = Success
	s.Results = result.Clone(resp.Results)
	s.Error = ""
	s.LastLatency = &latency
}

// Fail records a failed search. An empty message falls back to FallbackError.
// Results stay empty and the last latency is kept.
func (s *State) Fail(message string) {
	if message == "" {
		message = FallbackError
	}
	s.Phase = Failure
	s.Results = []result.Product{}
	s.Error = message
}

// Clone returns a deep copy of the state.
func (s *State) Clone() State {
	cp := *s
	cp.Results = result.Clone(s.Results)
	if s.LastLatency != nil {
		l := *s.LastLatency
		cp.LastLatency = &l
	}
	return cp
}
