package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaGenerate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprint(w, `{"model":"phi3:mini","response":"{\"quadrant\":\"DO_FIRST\"}","done":true,"prompt_eval_count":42,"eval_count":7}`)
	}))
	defer srv.Close()

	a := NewOllamaAdapter(srv.URL+"/", time.Second)
	resp, err := a.Generate(context.Background(), &Request{
		Model:       "phi3:mini",
		System:      "classify",
		Prompt:      "Task: pay rent",
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Stream || got.Format != "json" || got.System != "classify" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if resp.Content != `{"quadrant":"DO_FIRST"}` || resp.Adapter != "ollama" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.PromptTokens != 42 || resp.Usage.CompletionTokens != 7 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestOllamaStatusErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaAdapter(srv.URL, time.Second).Generate(context.Background(), &Request{Model: "phi3:mini"})
	if err == nil {
		t.Fatalf("expected error")
	}
	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) || adapterErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected AdapterError with 503, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatalf("503 should be transient")
	}
}

func TestDeepSeekGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		var req deepseekRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system + user messages, got %+v", req.Messages)
		}
		fmt.Fprint(w, `{"model":"deepseek-chat","choices":[{"message":{"role":"assistant","content":"ok"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	}))
	defer srv.Close()

	a, err := NewDeepSeekAdapter("key", WithDeepSeekBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	resp, err := a.Generate(context.Background(), &Request{Model: "deepseek-chat", System: "s", Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "ok" || resp.Usage.TotalTokens != 4 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDeepSeekRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	a, _ := NewDeepSeekAdapter("key", WithDeepSeekBaseURL(srv.URL))
	_, err := a.Generate(context.Background(), &Request{Model: "deepseek-chat"})
	if !IsTransient(err) {
		t.Fatalf("429 should be transient, got %v", err)
	}
}

func TestMissingAPIKeys(t *testing.T) {
	if _, err := NewDeepSeekAdapter(""); err == nil {
		t.Fatalf("deepseek should require a key")
	}
	if _, err := NewAnthropicAdapter(""); err == nil {
		t.Fatalf("anthropic should require a key")
	}
	if _, err := NewOpenAIAdapter(""); err == nil {
		t.Fatalf("openai should require a key")
	}
	if _, err := NewGoogleAdapter(""); err == nil {
		t.Fatalf("google should require a key")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"429", &AdapterError{Status: 429}, true},
		{"500", &AdapterError{Status: 500}, true},
		{"400", &AdapterError{Status: 400}, false},
		{"temporary flag", &AdapterError{Temporary: true}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Fatalf("%s: IsTransient = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	usage := NormalizeUsage(&Usage{PromptTokens: 1000, CompletionTokens: 500})
	if usage.TotalTokens != 1500 {
		t.Fatalf("total = %d", usage.TotalTokens)
	}

	cost, ok := EstimateCost(&Pricing{PromptPer1K: 0.01, CompletionPer1K: 0.03}, usage)
	if !ok {
		t.Fatalf("expected pricing")
	}
	if math.Abs(cost.Amount-0.025) > 1e-9 || !cost.IsEstimate || cost.Currency != "USD" {
		t.Fatalf("unexpected cost: %+v", cost)
	}

	if _, ok := EstimateCost(nil, usage); ok {
		t.Fatalf("nil pricing should report false")
	}
}

func TestMockAdapter(t *testing.T) {
	m := NewMockAdapterWithResponses(map[string]string{"known": "canned"}, "")
	resp, _ := m.Generate(context.Background(), &Request{Prompt: "known"})
	if resp.Content != "canned" || resp.Model != "mock-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	resp, _ = m.Generate(context.Background(), &Request{Prompt: "other"})
	if resp.Content != DefaultMockResponse {
		t.Fatalf("expected default response, got %q", resp.Content)
	}

	m.Respond = func(*Request) (string, error) { return "", errors.New("offline") }
	if _, err := m.Generate(context.Background(), &Request{}); err == nil {
		t.Fatalf("expected Respond error")
	}
	if m.Calls() != 3 {
		t.Fatalf("calls = %d, want 3", m.Calls())
	}
}
