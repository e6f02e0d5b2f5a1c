package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/pkg/broker"
	"github.com/qagraph/qagraph/pkg/checkpoint"
	"github.com/qagraph/qagraph/pkg/feedback"
	"github.com/qagraph/qagraph/pkg/session"
	"github.com/qagraph/qagraph/pkg/state"
)

func newTestHandler(t *testing.T) (*Handler, broker.Broker, checkpoint.Store, feedback.Store) {
	t.Helper()
	b := broker.NewMemoryBroker(16, time.Minute)
	store := checkpoint.NewMemoryStore()
	fb := feedback.NewMemoryStore()
	reg := adapters.NewRegistry()
	reg.Register(adapters.NewCalculatorAdapter())

	h := NewHandler(Config{
		Broker:            b,
		Sessions:          session.NewService(store),
		Feedback:          fb,
		Adapters:          reg,
		LLM:               llmclient.NewMockClient(),
		HeartbeatInterval: time.Hour,
	})
	return h, b, store, fb
}

func TestHandleQueue_RejectsEmptyQuery(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/queue", "application/json", strings.NewReader(`{"query":""}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleQueue_EnqueuesAndReturnsStreamURL(t *testing.T) {
	h, b, _, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/queue", "application/json", strings.NewReader(`{"query":"2 + 2","session_id":"s1"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var qr queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !qr.Success || qr.RequestID == "" || qr.StreamURL != "/api/stream/"+qr.RequestID {
		t.Fatalf("unexpected response: %+v", qr)
	}

	job, err := b.Claim(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job.Query != "2 + 2" || job.SessionID != "s1" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestHandleStream_RepliesConnectedThenPairsNodeWithDelta(t *testing.T) {
	h, b, _, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	ctx := context.Background()
	requestID := "req-1"
	if err := b.Publish(ctx, requestID, &state.Event{RequestID: requestID, Kind: state.EventConnected}); err != nil {
		t.Fatalf("publish connected: %v", err)
	}
	if err := b.Publish(ctx, requestID, &state.Event{RequestID: requestID, Kind: state.EventNode, Payload: state.NodePayload{Name: "router"}}); err != nil {
		t.Fatalf("publish node: %v", err)
	}
	if err := b.Publish(ctx, requestID, &state.Event{RequestID: requestID, Kind: state.EventStateDelta, Payload: state.StateDeltaPayload{"routing_decision": "direct_answer"}}); err != nil {
		t.Fatalf("publish delta: %v", err)
	}
	if err := b.Publish(ctx, requestID, &state.Event{RequestID: requestID, Kind: state.EventComplete, Payload: state.CompletePayload{FinalAnswer: "4"}}); err != nil {
		t.Fatalf("publish complete: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/stream/"+requestID, nil)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			lines = append(lines, strings.TrimPrefix(line, "data: "))
		}
		if strings.Contains(line, `"complete"`) {
			break
		}
	}

	if len(lines) != 3 {
		t.Fatalf("expected 3 data lines (connected, node+state, complete), got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], `"connected"`) {
		t.Fatalf("first line not connected: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"node":"router"`) || !strings.Contains(lines[1], `"routing_decision":"direct_answer"`) {
		t.Fatalf("second line missing paired node/state: %s", lines[1])
	}
	if !strings.Contains(lines[2], `"complete"`) || !strings.Contains(lines[2], `"4"`) {
		t.Fatalf("third line missing complete payload: %s", lines[2])
	}
}

func TestHandleSessions_ListGetDelete(t *testing.T) {
	h, _, store, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	ctx := context.Background()
	if _, err := store.Save(ctx, "sess-a", &state.AgentState{
		ChatHistory: []state.Message{{Role: state.RoleUser, Content: "hi"}, {Role: state.RoleAssistant, Content: "hello"}},
		Summary:     "greeting exchange",
	}); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	listResp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer listResp.Body.Close()
	var lr sessionListResponse
	if err := json.NewDecoder(listResp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if !lr.Success || len(lr.Sessions) != 1 || lr.Sessions[0].SessionID != "sess-a" {
		t.Fatalf("unexpected list: %+v", lr)
	}

	getResp, err := http.Get(srv.URL + "/api/sessions/sess-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer getResp.Body.Close()
	var dr sessionDetailResponse
	if err := json.NewDecoder(getResp.Body).Decode(&dr); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if !dr.Success || len(dr.History) != 2 || dr.Summary != "greeting exchange" {
		t.Fatalf("unexpected detail: %+v", dr)
	}

	missResp, err := http.Get(srv.URL + "/api/sessions/does-not-exist")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	defer missResp.Body.Close()
	if missResp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", missResp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/sess-a", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", delResp.StatusCode)
	}

	if _, err := store.LoadLatest(ctx, "sess-a"); err == nil {
		t.Fatalf("expected session to be gone after delete")
	}
}

func TestHandleFeedback_AppendAndAnalytics(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	body := `{"session_id":"sess-a","message_index":1,"feedback_type":"up","user_query":"q","assistant_response":"a","routing_decision":"direct_answer"}`
	resp, err := http.Post(srv.URL+"/api/feedback", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var fr feedbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !fr.Success || fr.FeedbackID == "" {
		t.Fatalf("unexpected response: %+v", fr)
	}

	badResp, err := http.Post(srv.URL+"/api/feedback", "application/json", strings.NewReader(`{"session_id":"s","feedback_type":"sideways"}`))
	if err != nil {
		t.Fatalf("post bad: %v", err)
	}
	defer badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", badResp.StatusCode)
	}

	analyticsResp, err := http.Get(srv.URL + "/api/analytics/feedback")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	defer analyticsResp.Body.Close()
	var ar feedbackAnalyticsResponse
	if err := json.NewDecoder(analyticsResp.Body).Decode(&ar); err != nil {
		t.Fatalf("decode analytics: %v", err)
	}
	if ar.Total != 1 || ar.ThumbsUp != 1 || ar.SatisfactionRate != 1.0 {
		t.Fatalf("unexpected analytics: %+v", ar)
	}
}

func TestHandleHealth_ReportsFlatBackendsShape(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var hr healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, name := range []string{"llm", "search", "retrieval", "broker", "store"} {
		if _, ok := hr.Backends[name]; !ok {
			t.Fatalf("missing backend %q in %+v", name, hr.Backends)
		}
	}
	if hr.Status == "" {
		t.Fatalf("expected a non-empty status")
	}
}
