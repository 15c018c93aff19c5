package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type capturedRequest struct {
	Model          string           `json:"model"`
	Stream         bool             `json:"stream"`
	Messages       []map[string]any `json:"messages"`
	Tools          []map[string]any `json:"tools"`
	ResponseFormat map[string]any   `json:"response_format"`
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req capturedRequest)) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req capturedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, zaptest.NewLogger(t))
}

func writeCompletion(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "test-model",
		"choices": []any{map[string]any{"index": 0, "message": message, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18},
	})
}

func TestCompleteReturnsContent(t *testing.T) {
	var seen capturedRequest
	client := newTestServer(t, func(w http.ResponseWriter, req capturedRequest) {
		seen = req
		writeCompletion(w, map[string]any{"role": "assistant", "content": "a research plan"})
	})

	resp, err := client.Complete(context.Background(), Request{
		Model:    "planner-model",
		Messages: []Message{System("instructions"), User("query")},
	})
	require.NoError(t, err)
	assert.Equal(t, "a research plan", resp.Content)
	assert.Equal(t, 11, resp.Usage.PromptTokens)
	assert.Equal(t, "planner-model", seen.Model)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0]["role"])
	assert.Equal(t, "query", seen.Messages[1]["content"])
	assert.Nil(t, seen.ResponseFormat)
}

func TestCompleteDeclaresSchema(t *testing.T) {
	var seen capturedRequest
	client := newTestServer(t, func(w http.ResponseWriter, req capturedRequest) {
		seen = req
		writeCompletion(w, map[string]any{"role": "assistant", "content": `{"subtasks":[]}`})
	})

	_, err := client.Complete(context.Background(), Request{
		Model:    "splitter-model",
		Messages: []Message{User("plan")},
		Schema:   &Schema{Name: "SubtaskList", Definition: json.RawMessage(`{"type":"object"}`), Strict: true},
	})
	require.NoError(t, err)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_schema", seen.ResponseFormat["type"])
	js, ok := seen.ResponseFormat["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SubtaskList", js["name"])
	assert.Equal(t, true, js["strict"])
}

func TestCompleteReturnsToolCalls(t *testing.T) {
	var seen capturedRequest
	client := newTestServer(t, func(w http.ResponseWriter, req capturedRequest) {
		seen = req
		writeCompletion(w, map[string]any{
			"role": "assistant",
			"tool_calls": []any{map[string]any{
				"id":       "call_1",
				"type":     "function",
				"function": map[string]any{"name": "search_web", "arguments": `{"query":"transit"}`},
			}},
		})
	})

	resp, err := client.Complete(context.Background(), Request{
		Model:    "worker-model",
		Messages: []Message{User("research")},
		Tools:    []ToolSpec{{Name: "search_web", Description: "search", Parameters: json.RawMessage(`{"type":"object"}`)}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, ToolCall{ID: "call_1", Name: "search_web", Arguments: `{"query":"transit"}`}, resp.ToolCalls[0])
	require.Len(t, seen.Tools, 1)
}

func TestStreamMatchesBufferedContent(t *testing.T) {
	chunks := []string{"Step one. ", "Step two. ", "Step three."}
	client := newTestServer(t, func(w http.ResponseWriter, req capturedRequest) {
		if !req.Stream {
			writeCompletion(w, map[string]any{"role": "assistant", "content": strings.Join(chunks, "")})
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"id": "chatcmpl-1", "object": "chat.completion.chunk", "model": "test-model",
				"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": c}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	req := Request{Model: "planner-model", Messages: []Message{User("query")}}
	var received []string
	streamed, err := client.Stream(context.Background(), req, func(chunk string) { received = append(received, chunk) })
	require.NoError(t, err)
	buffered, err := client.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, chunks, received)
	assert.Equal(t, buffered.Content, streamed.Content)
}

func TestProviderErrorIsGenerationFailure(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, req capturedRequest) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	})

	_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{User("q")}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationFailed))
	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "m", genErr.Model)
}

func TestEmptyChoicesIsGenerationFailure(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, req capturedRequest) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})
	_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{User("q")}})
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestStreamRejectsTools(t *testing.T) {
	client := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := client.Stream(context.Background(), Request{Model: "m", Tools: []ToolSpec{{Name: "x"}}}, nil)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}
