package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vibematch/internal/db/memory"
	"github.com/kailas-cloud/vibematch/internal/domain"
	"github.com/kailas-cloud/vibematch/internal/domain/search/result"
	"github.com/kailas-cloud/vibematch/internal/domain/view"
	"github.com/kailas-cloud/vibematch/internal/metrics"
	"github.com/kailas-cloud/vibematch/internal/repository/viewstate"
	"github.com/kailas-cloud/vibematch/internal/transport/backend"
	healthuc "github.com/kailas-cloud/vibematch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/vibematch/internal/usecase/search"
)

const testID = "3f2b1c4e-8a9d-4e6f-b7a1-0c2d3e4f5a6b"

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockViews struct {
	states map[string]view.State

	mountPrefill string
	edits        []string
	submitErr    error
	suggestErr   error
	getErr       error
	submitted    int
}

func newMockViews() *mockViews {
	return &mockViews{states: map[string]view.State{testID: view.New()}}
}

func (m *mockViews) Mount(_ context.Context, prefill string) (string, error) {
	m.mountPrefill = prefill
	st := view.New()
	st.EditQuery(prefill)
	m.states[testID] = st
	return testID, nil
}

func (m *mockViews) Get(_ context.Context, id string) (view.State, error) {
	if m.getErr != nil {
		return view.State{}, m.getErr
	}
	st, ok := m.states[id]
	if !ok {
		return view.State{}, domain.ErrViewNotFound
	}
	return st, nil
}

func (m *mockViews) EditQuery(_ context.Context, id, text string) (view.State, error) {
	st, ok := m.states[id]
	if !ok {
		return view.State{}, domain.ErrViewNotFound
	}
	m.edits = append(m.edits, text)
	st.EditQuery(text)
	m.states[id] = st
	return st, nil
}

func (m *mockViews) SelectSuggestion(_ context.Context, id string, n int) (view.State, error) {
	if m.suggestErr != nil {
		return view.State{}, m.suggestErr
	}
	st, ok := m.states[id]
	if !ok {
		return view.State{}, domain.ErrViewNotFound
	}
	if err := st.SelectSuggestion(n); err != nil {
		return view.State{}, err
	}
	m.states[id] = st
	return st, nil
}

func (m *mockViews) SubmitQuery(_ context.Context, id, text string) (bool, error) {
	st, ok := m.states[id]
	if !ok {
		return false, domain.ErrViewNotFound
	}
	if !st.Loading() {
		m.edits = append(m.edits, text)
		st.EditQuery(text)
		m.states[id] = st
	}
	m.submitted++
	return m.submitErr == nil, m.submitErr
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(views ViewService) http.Handler {
	health := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{healthuc.CheckSessions: healthuc.CheckOK},
	}}
	return NewRouter(NewServer(views, health, zap.NewNop()), zap.NewNop())
}

func do(h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (body %q)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

// --- Tests ---

func TestMountView(t *testing.T) {
	views := newMockViews()
	h := newTestRouter(views)

	rec := do(h, http.MethodGet, "/?q=beach+summer", nil)
	assertRedirect(t, rec, "/v/"+testID)
	if views.mountPrefill != "beach summer" {
		t.Errorf("prefill = %q", views.mountPrefill)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestShowView_Idle(t *testing.T) {
	h := newTestRouter(newMockViews())

	rec := do(h, http.MethodGet, "/v/"+testID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Vibe Matcher ✨",
		"Find Fashion That Matches Your Energy",
		"✨ Popular Vibes",
		"energetic urban chic",
		"/v/" + testID + "/suggestions/3",
		"🔍",
		"linear-gradient(to bottom right, #99f6e4, #d1fae5)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, `http-equiv="refresh"`) {
		t.Error("idle page should not auto-refresh")
	}
	if strings.Contains(body, "ZgotmplZ") {
		t.Error("template rejected a value")
	}
}

func TestShowView_LoadingRefreshes(t *testing.T) {
	views := newMockViews()
	st := view.New()
	st.EditQuery("cozy comfortable")
	_, _ = st.Begin()
	views.states[testID] = st

	body := do(newTestRouter(views), http.MethodGet, "/v/"+testID, nil).Body.String()
	if !strings.Contains(body, `http-equiv="refresh"`) {
		t.Error("loading page should auto-refresh")
	}
	if !strings.Contains(body, "⏳") || !strings.Contains(body, "disabled") {
		t.Error("submit control should show the loading state")
	}
	if strings.Contains(body, "Popular Vibes") {
		t.Error("suggestions shown while loading")
	}
}

func TestShowView_Results(t *testing.T) {
	views := newMockViews()
	st := view.New()
	st.EditQuery("cozy comfortable")
	_, _ = st.Begin()
	st.Succeed(result.Response{
		Results: []result.Product{{
			ID: 3, Name: "Cozy Oversized Sweater", Description: "Soft <knit>", Price: 65.99,
			VibeTags: []string{"cozy"}, SimilarityScore: 0.62,
		}},
		LatencyMS: 37.6,
	})
	views.states[testID] = st

	body := do(newTestRouter(views), http.MethodGet, "/v/"+testID, nil).Body.String()
	for _, want := range []string{
		"Cozy Oversized Sweater",
		"Soft &lt;knit&gt;",
		"62%",
		"#cozy",
		"65.99",
		"🛒 Add",
		"⚡ Found in 38ms",
		"👗",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestShowView_UnknownView(t *testing.T) {
	h := newTestRouter(newMockViews())

	assertRedirect(t, do(h, http.MethodGet, "/v/not-a-uuid", nil), "/")
	assertRedirect(t, do(h, http.MethodGet, "/v/00000000-0000-0000-0000-000000000000", nil), "/")
}

func TestShowView_StoreError(t *testing.T) {
	views := newMockViews()
	views.getErr = errors.New("redis down")

	rec := do(newTestRouter(views), http.MethodGet, "/v/"+testID, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestEditQuery(t *testing.T) {
	views := newMockViews()
	rec := do(newTestRouter(views), http.MethodPost, "/v/"+testID+"/query", url.Values{"q": {"elegant formal"}})

	assertRedirect(t, rec, "/v/"+testID)
	if views.states[testID].Query != "elegant formal" {
		t.Errorf("query = %q", views.states[testID].Query)
	}
}

func TestSelectSuggestion(t *testing.T) {
	views := newMockViews()
	h := newTestRouter(views)

	assertRedirect(t, do(h, http.MethodPost, "/v/"+testID+"/suggestions/1", url.Values{}), "/v/"+testID)
	if views.states[testID].Query != "cozy comfortable" {
		t.Errorf("query = %q", views.states[testID].Query)
	}
	if views.submitted != 0 {
		t.Error("suggestion submitted a search")
	}

	if rec := do(h, http.MethodPost, "/v/"+testID+"/suggestions/9", url.Values{}); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range status = %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/v/"+testID+"/suggestions/abc", url.Values{}); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric status = %d", rec.Code)
	}
}

func TestSubmitSearch(t *testing.T) {
	views := newMockViews()
	rec := do(newTestRouter(views), http.MethodPost, "/v/"+testID+"/search", url.Values{"q": {"beach summer"}})

	assertRedirect(t, rec, "/v/"+testID)
	if len(views.edits) != 1 || views.edits[0] != "beach summer" {
		t.Errorf("edits = %v", views.edits)
	}
	if views.submitted != 1 {
		t.Errorf("submitted = %d", views.submitted)
	}
}

func TestSubmitSearch_InFlight(t *testing.T) {
	views := newMockViews()
	st := view.New()
	st.EditQuery("cozy comfortable")
	_, _ = st.Begin()
	views.states[testID] = st
	views.submitErr = domain.ErrSubmitInFlight

	rec := do(newTestRouter(views), http.MethodPost, "/v/"+testID+"/search", url.Values{"q": {"other"}})
	assertRedirect(t, rec, "/v/"+testID)
	if len(views.edits) != 0 {
		t.Errorf("query edited while loading: %v", views.edits)
	}
}

func TestGetViewState(t *testing.T) {
	views := newMockViews()
	views.states[testID] = func() view.State {
		st := view.New()
		st.EditQuery("q")
		_, _ = st.Begin()
		st.Fail("Search failed")
		return st
	}()
	h := newTestRouter(views)

	rec := do(h, http.MethodGet, "/api/views/"+testID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["phase"] != "failure" || got["error"] != "Search failed" || got["query"] != "q" {
		t.Errorf("body = %v", got)
	}

	rec = do(h, http.MethodGet, "/api/views/00000000-0000-0000-0000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing view status = %d", rec.Code)
	}
	var errResp ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &errResp)
	if errResp.Code != "view_not_found" {
		t.Errorf("code = %q", errResp.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		health := &mockHealth{report: healthuc.Report{Status: tt.status, Checks: map[string]healthuc.CheckResult{}}}
		h := NewRouter(NewServer(newMockViews(), health, nil), zap.NewNop())

		rec := do(h, http.MethodGet, "/health", nil)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.status, rec.Code, tt.want)
		}
		var body HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Status != tt.status {
			t.Errorf("%s: body = %+v (%v)", tt.status, body, err)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(newMockViews())
	do(h, http.MethodGet, "/v/"+testID, nil)

	rec := do(h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "vibematch_http_requests_total") {
		t.Error("http metrics not exported")
	}
}

func TestRecoverer(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Recoverer(zap.NewNop()))
	r.Get("/api/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := do(r, http.MethodGet, "/api/boom", nil)
	if rec.Code != http.StatusInternalServerError || rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("api panic = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	rec = do(r, http.MethodGet, "/boom", nil)
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Header().Get("Content-Type"), "json") {
		t.Errorf("page panic = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

// TestEndToEnd drives the real view service, session store and backend client.
func TestEndToEnd(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
			TopK  int    `json:"top_k"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Query == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Search failed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"query":"` + req.Query + `","results":[
			{"id":3,"name":"Cozy Oversized Sweater","description":"Soft knit","price":65.99,
			 "vibe_tags":["cozy"],"similarity_score":0.62}],"count":1,"latency_ms":37.6}`))
	}))
	defer backendSrv.Close()

	client, err := backend.NewClient(&backend.Config{BaseURL: backendSrv.URL})
	if err != nil {
		t.Fatal(err)
	}
	store := memory.NewStore()
	svc := searchuc.New(viewstate.New(store, time.Hour), client, zap.NewNop())
	health := healthuc.New(store, client)
	h := NewRouter(NewServer(svc, health, zap.NewNop()), zap.NewNop())

	loc := do(h, http.MethodGet, "/", nil).Header().Get("Location")
	if !strings.HasPrefix(loc, "/v/") {
		t.Fatalf("Location = %q", loc)
	}

	assertRedirect(t, do(h, http.MethodPost, loc+"/search", url.Values{"q": {"cozy comfortable"}}), loc)
	svc.Wait()

	body := do(h, http.MethodGet, loc, nil).Body.String()
	if !strings.Contains(body, "Cozy Oversized Sweater") || !strings.Contains(body, "⚡ Found in 38ms") {
		t.Errorf("results page missing content:\n%s", body)
	}

	assertRedirect(t, do(h, http.MethodPost, loc+"/search", url.Values{"q": {"boom"}}), loc)
	svc.Wait()

	body = do(h, http.MethodGet, loc, nil).Body.String()
	if !strings.Contains(body, "❌ Search failed") {
		t.Error("error banner missing")
	}
	if !strings.Contains(body, "⚡ Found in 38ms") {
		t.Error("stale latency banner missing")
	}
	if !strings.Contains(body, "Popular Vibes") {
		t.Error("suggestions missing after failure")
	}

	if rec := do(h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}
