package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vibematch/internal/domain"
	"github.com/kailas-cloud/vibematch/internal/domain/view"
	"github.com/kailas-cloud/vibematch/internal/domain/view/render"
	logpkg "github.com/kailas-cloud/vibematch/internal/logger"
	healthuc "github.com/kailas-cloud/vibematch/internal/usecase/health"
)

// Error codes returned by the JSON endpoints.
const (
	codeViewNotFound      = "view_not_found"
	codeInvalidSuggestion = "invalid_suggestion"
	codeSubmitInFlight    = "search_in_flight"
	codeInternal          = "internal_error"
)

// maxFormBytes caps a submitted form body.
const maxFormBytes = 64 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// Server serves the vibe search page and its JSON snapshot API.
type Server struct {
	views         ViewService
	health        HealthChecker
	logger        *zap.Logger
	page          *pageRenderer
	errorHandlers []errorHandler
}

// NewServer creates the HTTP server.
func NewServer(views ViewService, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		views:  views,
		health: health,
		logger: logger,
		page:   newPageRenderer(),
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrViewNotFound, http.StatusNotFound, codeViewNotFound),
		sentinelHandler(domain.ErrInvalidSuggestion, http.StatusBadRequest, codeInvalidSuggestion),
		sentinelHandler(domain.ErrSubmitInFlight, http.StatusConflict, codeSubmitInFlight),
	}
	return s
}

// Register mounts all routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.MountView)
	r.Route("/v/{id}", func(r chi.Router) {
		r.Get("/", s.ShowView)
		r.Post("/query", s.EditQuery)
		r.Post("/suggestions/{n}", s.SelectSuggestion)
		r.Post("/search", s.SubmitSearch)
	})
	r.Get("/api/views/{id}", s.GetViewState)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// MountView handles GET /: creates a view and redirects to it.
func (s *Server) MountView(w http.ResponseWriter, r *http.Request) {
	var q *string
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &q); err != nil {
		http.Error(w, "invalid parameter q", http.StatusBadRequest)
		return
	}
	prefill := ""
	if q != nil {
		prefill = *q
	}

	id, err := s.views.Mount(r.Context(), prefill)
	if err != nil {
		s.handlePageError(w, r, "", err)
		return
	}
	redirectToView(w, r, id)
}

// ShowView handles GET /v/{id}.
func (s *Server) ShowView(w http.ResponseWriter, r *http.Request) {
	id, ok := bindViewID(w, r)
	if !ok {
		return
	}
	st, err := s.views.Get(r.Context(), id)
	if err != nil {
		s.handlePageError(w, r, id, err)
		return
	}
	s.renderPage(w, r, id, st)
}

// EditQuery handles POST /v/{id}/query.
func (s *Server) EditQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := bindViewID(w, r)
	if !ok {
		return
	}
	text, ok := bindFormQuery(w, r)
	if !ok {
		return
	}
	if _, err := s.views.EditQuery(r.Context(), id, text); err != nil {
		s.handlePageError(w, r, id, err)
		return
	}
	redirectToView(w, r, id)
}

// SelectSuggestion handles POST /v/{id}/suggestions/{n}.
func (s *Server) SelectSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := bindViewID(w, r)
	if !ok {
		return
	}
	var n int
	if err := runtime.BindStyledParameterWithOptions("simple", "n", chi.URLParam(r, "n"), &n,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true},
	); err != nil {
		http.Error(w, "invalid suggestion index", http.StatusBadRequest)
		return
	}
	if _, err := s.views.SelectSuggestion(r.Context(), id, n); err != nil {
		s.handlePageError(w, r, id, err)
		return
	}
	redirectToView(w, r, id)
}

// SubmitSearch handles POST /v/{id}/search: stores the typed query and starts a search.
func (s *Server) SubmitSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := bindViewID(w, r)
	if !ok {
		return
	}
	text, ok := bindFormQuery(w, r)
	if !ok {
		return
	}

	started, err := s.views.SubmitQuery(r.Context(), id, text)
	if err != nil {
		s.handlePageError(w, r, id, err)
		return
	}
	logpkg.FromContext(r.Context()).Debug("search submitted",
		zap.String("view_id", id),
		zap.Bool("started", started),
	)
	redirectToView(w, r, id)
}

// GetViewState handles GET /api/views/{id}.
func (s *Server) GetViewState(w http.ResponseWriter, r *http.Request) {
	id, err := parseViewID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, codeViewNotFound, domain.ErrViewNotFound.Error())
		return
	}
	st, err := s.views.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: report.Status,
		Checks: report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, id string, st view.State) {
	var buf bytes.Buffer
	if err := s.page.Render(&buf, id, render.Build(st)); err != nil {
		logpkg.FromContext(r.Context()).Error("render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// handlePageError maps domain errors on HTML routes to redirects or plain errors.
func (s *Server) handlePageError(w http.ResponseWriter, r *http.Request, id string, err error) {
	log := logpkg.FromContext(r.Context())
	switch {
	case errors.Is(err, domain.ErrViewNotFound):
		log.Debug("view expired, mounting a new one", zap.String("view_id", id))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, domain.ErrSubmitInFlight):
		redirectToView(w, r, id)
	case errors.Is(err, domain.ErrInvalidSuggestion):
		http.Error(w, domain.ErrInvalidSuggestion.Error(), http.StatusBadRequest)
	default:
		log.Error("internal error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

// bindViewID reads the {id} path parameter. Unknown ids start over at /.
func bindViewID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := parseViewID(chi.URLParam(r, "id"))
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return "", false
	}
	return id, true
}

func parseViewID(raw string) (string, error) {
	var id string
	if err := runtime.BindStyledParameterWithOptions("simple", "id", raw, &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true},
	); err != nil {
		return "", err
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// bindFormQuery reads the "q" form field. A missing field reads as "".
func bindFormQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return "", false
	}
	var q *string
	if err := runtime.BindQueryParameter("form", true, false, "q", r.PostForm, &q); err != nil {
		http.Error(w, "invalid parameter q", http.StatusBadRequest)
		return "", false
	}
	if q == nil {
		return "", true
	}
	return *q, true
}

func redirectToView(w http.ResponseWriter, r *http.Request, id string) {
	http.Redirect(w, r, "/v/"+id, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrViewNotFound,
		domain.ErrInvalidSuggestion,
		domain.ErrSubmitInFlight,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
