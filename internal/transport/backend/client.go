package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/vibematch/internal/domain"
	"github.com/kailas-cloud/vibematch/internal/domain/search/request"
	"github.com/kailas-cloud/vibematch/internal/domain/search/result"
	"github.com/kailas-cloud/vibematch/internal/metrics"
)

const (
	searchPath = "/api/search"
	healthPath = "/api/health"

	// maxBodyBytes caps how much of a backend response is read.
	maxBodyBytes = 1 << 20
)

// Client calls the vibe search backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Config holds the backend client settings.
type Config struct {
	BaseURL string
	// Timeout bounds a single call; 0 means no client-side timeout.
	Timeout time.Duration
	// RateLimit is the sustained outbound requests per second; 0 disables limiting.
	RateLimit float64
	Burst     int
	// HTTPClient overrides the default otelhttp-instrumented client.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a backend client.
func NewClient(cfg *Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("backend url must be absolute http(s), got %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		timeout: cfg.Timeout,
		limiter: limiter,
		logger:  logger,
	}, nil
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// searchResponse mirrors the wire format; pointers detect missing fields.
type searchResponse struct {
	Query     string         `json:"query"`
	Results   *[]wireProduct `json:"results"`
	Count     int            `json:"count"`
	LatencyMS *float64       `json:"latency_ms"`
}

type wireProduct struct {
	ID              *int     `json:"id"`
	Name            *string  `json:"name"`
	Description     string   `json:"description"`
	Price           *float64 `json:"price"`
	VibeTags        []string `json:"vibe_tags"`
	SimilarityScore *float64 `json:"similarity_score"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Search sends one vibe query and returns the validated response.
// Transport failures and non-2xx answers come back as *domain.BackendError;
// shape violations wrap domain.ErrMalformedResponse.
func (c *Client) Search(ctx context.Context, req request.Request) (result.Response, error) {
	if err := c.wait(ctx, searchPath); err != nil {
		return result.Response{}, err
	}

	body, err := json.Marshal(searchRequest{Query: req.Query(), TopK: req.TopK()})
	if err != nil {
		return result.Response{}, fmt.Errorf("encode search request: %w", err)
	}

	status, data, err := c.do(ctx, http.MethodPost, searchPath, body)
	if err != nil {
		return result.Response{}, err
	}

	resp, err := decodeSearch(data)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(searchPath, "malformed").Inc()
		c.logger.Warn("malformed search response",
			zap.Int("status", status),
			zap.Error(err),
		)
		return result.Response{}, err
	}

	metrics.BackendRequestsTotal.WithLabelValues(searchPath, "success").Inc()
	return resp, nil
}

// HealthCheck verifies the backend answers its health endpoint with 2xx.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, _, err := c.do(ctx, http.MethodGet, healthPath, nil); err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	metrics.BackendRequestsTotal.WithLabelValues(healthPath, "success").Inc()
	return nil
}

func (c *Client) wait(ctx context.Context, endpoint string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return nil
}

// do performs a request and returns the status and body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	metrics.BackendRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(path, "error").Inc()
		return 0, nil, &domain.BackendError{Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(path, "error").Inc()
		return 0, nil, &domain.BackendError{Status: httpResp.StatusCode, Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		metrics.BackendRequestsTotal.WithLabelValues(path, "error").Inc()
		be := &domain.BackendError{Status: httpResp.StatusCode, Message: extractError(data)}
		c.logger.Debug("backend returned error status",
			zap.String("path", path),
			zap.Int("status", be.Status),
			zap.String("message", be.Message),
		)
		return httpResp.StatusCode, nil, be
	}

	return httpResp.StatusCode, data, nil
}

// extractError returns the "error" field of a JSON error body, or "".
func extractError(data []byte) string {
	var parsed errorResponse
	if json.Unmarshal(data, &parsed) != nil {
		return ""
	}
	return parsed.Error
}

func decodeSearch(data []byte) (result.Response, error) {
	var wire searchResponse
	if err := json.Unmarshal(data, &wire); err != nil {
		return result.Response{}, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}
	if wire.Results == nil {
		return result.Response{}, fmt.Errorf("%w: results missing", domain.ErrMalformedResponse)
	}
	if wire.LatencyMS == nil {
		return result.Response{}, fmt.Errorf("%w: latency_ms missing", domain.ErrMalformedResponse)
	}

	products := make([]result.Product, len(*wire.Results))
	for i, wp := range *wire.Results {
		p, err := wp.toDomain()
		if err != nil {
			return result.Response{}, fmt.Errorf("results[%d]: %w", i, err)
		}
		products[i] = p
	}

	resp := result.Response{
		Query:     wire.Query,
		Results:   products,
		Count:     wire.Count,
		LatencyMS: *wire.LatencyMS,
	}
	if err := resp.Validate(); err != nil {
		return result.Response{}, err
	}
	return resp, nil
}

func (w *wireProduct) toDomain() (result.Product, error) {
	var missing []string
	if w.ID == nil {
		missing = append(missing, "id")
	}
	if w.Name == nil {
		missing = append(missing, "name")
	}
	if w.Price == nil {
		missing = append(missing, "price")
	}
	if w.SimilarityScore == nil {
		missing = append(missing, "similarity_score")
	}
	if len(missing) > 0 {
		return result.Product{}, fmt.Errorf("%w: missing %s",
			domain.ErrMalformedResponse, strings.Join(missing, ", "))
	}

	tags := w.VibeTags
	if tags == nil {
		tags = []string{}
	}
	return result.Product{
		ID:              *w.ID,
		Name:            *w.Name,
		Description:     w.Description,
		Price:           *w.Price,
		VibeTags:        tags,
		SimilarityScore: *w.SimilarityScore,
	}, nil
}
