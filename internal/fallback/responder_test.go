package fallback

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completionJSON(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func TestResponder_NoKey(t *testing.T) {
	r := New(Config{}, discardLogger())
	if r.Enabled() {
		t.Fatal("responder without key should be disabled")
	}
	if got := r.Reply(context.Background(), "hi"); got != Apology {
		t.Errorf("Reply = %q, want apology", got)
	}
}

func TestResponder_Success(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("Hello there")))
	}))
	defer srv.Close()

	r := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "test-model"}, discardLogger())
	got := r.Reply(context.Background(), "hi")

	if got != Notice+"Hello there" {
		t.Errorf("Reply = %q", got)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model = %v", gotBody["model"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
	last, _ := msgs[1].(map[string]any)
	if last["role"] != "user" || last["content"] != "hi" {
		t.Errorf("user message = %v", last)
	}
}

func TestResponder_FailuresDegradeToApology(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
		}},
		{"empty content", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(completionJSON("   ")))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			r := New(Config{APIKey: "sk-test", BaseURL: srv.URL}, discardLogger())
			if got := r.Reply(context.Background(), "hi"); got != Apology {
				t.Errorf("Reply = %q, want apology", got)
			}
			if calls.Load() != 1 {
				t.Errorf("calls = %d, want exactly 1 (no retries)", calls.Load())
			}
		})
	}
}

func TestResponder_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	r := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, discardLogger())
	if got := r.Reply(context.Background(), "hi"); got != Apology {
		t.Errorf("Reply = %q, want apology", got)
	}
}
