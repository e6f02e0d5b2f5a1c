package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

// TargetedCrawlAdapter fetches one URL (opts.Target) and returns its body
// as a single Evidence item. Grounded on the same narrow *http.Client-
// with-timeout shape as WebSearchAdapter; unlike web search there's no
// third-party API key involved, so "configured" just means the adapter
// is enabled at all — deployments that want to disable raw outbound
// crawling can omit registering it instead of carrying a feature flag.
type TargetedCrawlAdapter struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewTargetedCrawlAdapter builds a TargetedCrawlAdapter. maxBytes bounds
// how much of a fetched page is kept as evidence; <= 0 uses a 64KB
// default, generous for an article body without risking megabytes of
// unrelated markup landing in a prompt.
func NewTargetedCrawlAdapter(timeout time.Duration, maxBytes int64) *TargetedCrawlAdapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 64 * 1024
	}
	return &TargetedCrawlAdapter{httpClient: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

// Kind implements Adapter.
func (a *TargetedCrawlAdapter) Kind() Kind { return KindTargetedCrawl }

// Configured implements Adapter.
func (a *TargetedCrawlAdapter) Configured() bool { return true }

// Run implements Adapter. query is used only as a human-readable label;
// opts.Target carries the URL to fetch.
func (a *TargetedCrawlAdapter) Run(ctx context.Context, query string, opts Options) Result {
	if opts.Target == "" {
		return Result{Err: fmt.Errorf("targeted_crawl: no target URL provided")}
	}
	parsed, err := url.Parse(opts.Target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Result{Err: fmt.Errorf("targeted_crawl: invalid target URL %q", opts.Target)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.Target, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("targeted_crawl: build request: %w", err)}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("targeted_crawl: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{Err: fmt.Errorf("targeted_crawl: backend status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Err: fmt.Errorf("targeted_crawl: unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBytes))
	if err != nil {
		return Result{Err: fmt.Errorf("targeted_crawl: read body: %w", err)}
	}

	return Result{Evidence: []state.Evidence{{Text: string(body), Source: opts.Target}}}
}
