package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

type fakeAdapter struct {
	kind       Kind
	configured bool
	calls      int
	failTimes  int
	result     Result
}

func (f *fakeAdapter) Kind() Kind       { return f.kind }
func (f *fakeAdapter) Configured() bool { return f.configured }
func (f *fakeAdapter) Run(_ context.Context, _ string, _ Options) Result {
	f.calls++
	if f.calls <= f.failTimes {
		return Result{Err: errors.New("transient failure")}
	}
	return f.result
}

func TestRegistry_RunDispatchesToRegisteredAdapter(t *testing.T) {
	reg := NewRegistry()
	fa := &fakeAdapter{kind: KindWebSearch, configured: true, result: Result{Evidence: []state.Evidence{{Text: "ok"}}}}
	reg.Register(fa)

	res := reg.Run(context.Background(), KindWebSearch, "q", Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Evidence) != 1 || res.Evidence[0].Text != "ok" {
		t.Fatalf("unexpected evidence: %+v", res.Evidence)
	}
}

func TestRegistry_UnregisteredKindErrors(t *testing.T) {
	reg := NewRegistry()
	res := reg.Run(context.Background(), KindCalculator, "1+1", Options{})
	if res.Err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

func TestRegistry_UnconfiguredAdapterReportsNeedsConfigurationWithoutRetrying(t *testing.T) {
	reg := NewRegistry().WithRetryConfig(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	fa := &fakeAdapter{kind: KindWebSearch, configured: false}
	reg.Register(fa)

	res := reg.Run(context.Background(), KindWebSearch, "q", Options{})
	if !errors.Is(res.Err, ErrNeedsConfiguration) {
		t.Fatalf("expected ErrNeedsConfiguration, got %v", res.Err)
	}
	if fa.calls != 0 {
		t.Fatalf("expected no calls to an unconfigured adapter, got %d", fa.calls)
	}
}

func TestRegistry_RetriesTransientFailures(t *testing.T) {
	reg := NewRegistry().WithRetryConfig(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	fa := &fakeAdapter{kind: KindWebSearch, configured: true, failTimes: 2, result: Result{Evidence: []state.Evidence{{Text: "recovered"}}}}
	reg.Register(fa)

	res := reg.Run(context.Background(), KindWebSearch, "q", Options{})
	if res.Err != nil {
		t.Fatalf("expected eventual success, got %v", res.Err)
	}
	if fa.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fa.calls)
	}
}

func TestRegistry_ConfiguredKinds(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeAdapter{kind: KindWebSearch, configured: true})
	reg.Register(&fakeAdapter{kind: KindTargetedCrawl, configured: false})

	kinds := reg.ConfiguredKinds()
	if len(kinds) != 1 || kinds[0] != KindWebSearch {
		t.Fatalf("expected only web_search configured, got %+v", kinds)
	}
}

func TestCalculatorAdapter_EvaluatesArithmetic(t *testing.T) {
	a := NewCalculatorAdapter()
	res := a.Run(context.Background(), "(2 + 3) * 4", Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Evidence) != 1 || res.Evidence[0].Text != "20" {
		t.Fatalf("expected 20, got %+v", res.Evidence)
	}
}

func TestCalculatorAdapter_DivisionByZeroErrors(t *testing.T) {
	a := NewCalculatorAdapter()
	res := a.Run(context.Background(), "1 / 0", Options{})
	if res.Err == nil {
		t.Fatal("expected division by zero error")
	}
}

func TestMemoryRetriever_ScoresByTermOverlap(t *testing.T) {
	r := NewMemoryRetriever()
	r.Upsert(
		Document{ID: "1", Content: "the capital of France is Paris", Source: "doc1"},
		Document{ID: "2", Content: "bananas are a good source of potassium", Source: "doc2"},
	)

	res := r.Run(context.Background(), "capital France", Options{TopK: 5})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Evidence) != 1 || res.Evidence[0].Source != "doc1" {
		t.Fatalf("expected only doc1 to match, got %+v", res.Evidence)
	}
}

func TestMemoryRetriever_EmptyIndexReturnsNoEvidenceNoError(t *testing.T) {
	r := NewMemoryRetriever()
	res := r.Run(context.Background(), "anything", Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Evidence) != 0 {
		t.Fatalf("expected no evidence from empty index, got %+v", res.Evidence)
	}
}

func TestTargetedCrawlAdapter_RejectsMissingTarget(t *testing.T) {
	a := NewTargetedCrawlAdapter(time.Second, 0)
	res := a.Run(context.Background(), "q", Options{})
	if res.Err == nil {
		t.Fatal("expected error when no target URL is provided")
	}
}

func TestTargetedCrawlAdapter_RejectsNonHTTPScheme(t *testing.T) {
	a := NewTargetedCrawlAdapter(time.Second, 0)
	res := a.Run(context.Background(), "q", Options{Target: "file:///etc/passwd"})
	if res.Err == nil {
		t.Fatal("expected error for non-http(s) scheme")
	}
}

func TestWebSearchAdapter_UnconfiguredWithoutAPIKey(t *testing.T) {
	a := NewWebSearchAdapter("", "", 0)
	if a.Configured() {
		t.Fatal("expected adapter without an API key to be unconfigured")
	}
	res := a.Run(context.Background(), "q", Options{})
	if !errors.Is(res.Err, ErrNeedsConfiguration) {
		t.Fatalf("expected ErrNeedsConfiguration, got %v", res.Err)
	}
}
