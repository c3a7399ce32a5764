package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/serenova-ai/serenova/pkg/core/types"
)

func TestOpenAICompleteRequestShape(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello there"}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithBaseURL(srv.URL))
	got, err := p.Complete(context.Background(), []types.ChatMessage{
		{Role: types.RoleSystem, Content: "sys"},
		{Role: types.RoleUser, Content: "hi"},
	}, Options{MaxTokens: 150, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete error = %v", err)
	}
	if got != "hello there" {
		t.Fatalf("got %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization=%q", gotAuth)
	}
	if gotBody.Model != DefaultModel {
		t.Fatalf("model=%q", gotBody.Model)
	}
	if gotBody.MaxTokens != 150 || gotBody.Temperature != 0.7 {
		t.Fatalf("opts not forwarded: %+v", gotBody)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != types.RoleSystem {
		t.Fatalf("messages not forwarded: %+v", gotBody.Messages)
	}
}

func TestOpenAICompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
		})
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithBaseURL(srv.URL))
	_, err := p.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, Options{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenAICompleteMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithBaseURL(srv.URL))
	_, err := p.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, Options{})
	if err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
