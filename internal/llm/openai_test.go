package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithModel("test-model"))
}

func TestChatWithToolsContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if req.ToolChoice != "auto" {
			t.Errorf("tool_choice = %q, want auto", req.ToolChoice)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message":       map[string]any{"content": "Here are some tracks."},
					"finish_reason": "stop",
				},
			},
		})
	})

	resp, err := client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "find synthwave"}},
		[]Tool{{Type: "function", Function: FunctionDef{Name: "search_tracks"}}},
	)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if resp.Content != "Here are some tracks." {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %v, want none", resp.ToolCalls)
	}
}

func TestChatWithToolsToolCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]any{
									"name":      "search_tracks",
									"arguments": `{"query":"synthwave","limit":10}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
		})
	})

	resp, err := client.ChatWithTools(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Function.Name != "search_tracks" {
		t.Errorf("tool name = %q", call.Function.Name)
	}
	if call.Function.Arguments != `{"query":"synthwave","limit":10}` {
		t.Errorf("arguments = %q", call.Function.Arguments)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("finish_reason = %q", resp.FinishReason)
	}
}

func TestChatWithToolsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := client.ChatWithTools(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatWithToolsEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": ""}, "finish_reason": "stop"},
			},
		})
	})
	if _, err := client.ChatWithTools(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Error("expected error for empty response")
	}
}
