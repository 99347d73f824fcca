package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/listening-companion/internal/platform/breaker"
)

// fakeOpenAI answers /chat/completions with content, or with status when
// status is non-zero.
func fakeOpenAI(t *testing.T, status int, content string, seen *atomic.Int32, lastBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if seen != nil {
			seen.Add(1)
		}
		if lastBody != nil {
			_ = json.NewDecoder(r.Body).Decode(lastBody)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error","code":"invalid_api_key"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_NotConfigured(t *testing.T) {
	c := New("", "gpt-4o-mini")
	if c.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if _, err := c.Complete(context.Background(), Request{User: "x"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestComplete_SendsPromptAndTrims(t *testing.T) {
	var body map[string]any
	srv := fakeOpenAI(t, 0, "  hello there \n", nil, &body)
	c := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))

	got, err := c.Complete(context.Background(), Request{Kind: "quiz", System: "sys", User: "usr", Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("expected trimmed content, got %q", got)
	}
	if body["model"] != "gpt-4o-mini" {
		t.Fatalf("model: %v", body["model"])
	}
	if body["temperature"] != 0.7 {
		t.Fatalf("temperature: %v", body["temperature"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(msgs))
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	srv := fakeOpenAI(t, 0, "   ", nil, nil)
	c := New("sk-test", "m", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if _, err := c.Complete(context.Background(), Request{User: "x"}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestComplete_InvalidKey(t *testing.T) {
	srv := fakeOpenAI(t, http.StatusUnauthorized, "", nil, nil)
	c := New("sk-bad", "m", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if _, err := c.Complete(context.Background(), Request{User: "x"}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestComplete_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := fakeOpenAI(t, http.StatusBadRequest, "", &calls, nil)
	cb := breaker.New("openai-test", breaker.Settings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 2}, nil)
	c := New("sk-test", "m", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0), WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		if _, err := c.Complete(context.Background(), Request{User: "x"}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if _, err := c.Complete(context.Background(), Request{User: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once open, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("open breaker must not reach upstream, calls=%d", calls.Load())
	}
}
