package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/qagraph/qagraph/pkg/state"
)

// DefaultWebSearchRPS bounds how often WebSearchAdapter calls out to its
// backend, independent of the Registry's retry/backoff — a paid search
// API is the one backend in this set whose provider actually enforces a
// requests-per-second quota.
const DefaultWebSearchRPS = 5

// WebSearchAdapter calls an external search API: a narrow *http.Client
// with its own timeout, one JSON request/response shape, no retry of
// its own (retry is the shared Registry's job).
type WebSearchAdapter struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewWebSearchAdapter builds a WebSearchAdapter. An empty apiKey marks
// the backend unconfigured.
func NewWebSearchAdapter(apiKey, endpoint string, timeout time.Duration) *WebSearchAdapter {
	if endpoint == "" {
		endpoint = "https://api.search.brave.com/res/v1/web/search"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebSearchAdapter{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultWebSearchRPS), DefaultWebSearchRPS),
	}
}

// Kind implements Adapter.
func (a *WebSearchAdapter) Kind() Kind { return KindWebSearch }

// Configured implements Adapter.
func (a *WebSearchAdapter) Configured() bool { return a.apiKey != "" }

type webSearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"description"`
	} `json:"results"`
}

// Run implements Adapter.
func (a *WebSearchAdapter) Run(ctx context.Context, query string, opts Options) Result {
	if !a.Configured() {
		return Result{Err: ErrNeedsConfiguration}
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return Result{Err: fmt.Errorf("web_search: rate limit wait: %w", err)}
	}

	reqURL := fmt.Sprintf("%s?q=%s", a.endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("web_search: build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("web_search: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{Err: fmt.Errorf("web_search: backend status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Err: fmt.Errorf("web_search: unexpected status %d", resp.StatusCode)}
	}

	var parsed webSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{Err: fmt.Errorf("web_search: decode response: %w", err)}
	}

	topK := opts.TopK
	if topK <= 0 || topK > len(parsed.Results) {
		topK = len(parsed.Results)
	}

	evidence := make([]state.Evidence, 0, topK)
	for _, r := range parsed.Results[:topK] {
		evidence = append(evidence, state.Evidence{Text: r.Snippet, Source: r.URL})
	}
	return Result{Evidence: evidence}
}
