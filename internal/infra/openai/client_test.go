package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:     srv.URL + "/v1/",
		ChatModel:   "test-chat",
		BaseBackoff: time.Millisecond,
	})
}

func TestClient_Embed_ReordersByIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bge-m3", body["model"])
		assert.Equal(t, []any{"first", "second"}, body["input"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"bge-m3","data":[
			{"object":"embedding","index":1,"embedding":[0.3,0.4]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	})

	vectors, err := client.Embed(context.Background(), []string{"first", "second"}, "bge-m3")
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 0.1, vectors[0][0], 1e-6)
	assert.InDelta(t, 0.3, vectors[1][0], 1e-6)
}

func TestClient_Embed_DuplicateIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":0,"embedding":[0.1]},
			{"object":"embedding","index":0,"embedding":[0.2]}
		]}`))
	})

	_, err := client.Embed(context.Background(), []string{"a", "b"}, "m")
	assert.ErrorIs(t, err, domain.ErrProviderContractViolation)
}

func TestClient_Embed_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"server error", http.StatusInternalServerError, domain.ErrTransientProvider},
		{"bad request", http.StatusBadRequest, domain.ErrProviderContractViolation},
		{"unauthorized", http.StatusUnauthorized, domain.ErrProviderContractViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"failure","type":"invalid_request_error"}}`))
			})
			_, err := client.Embed(context.Background(), []string{"a"}, "m")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Chat_RateLimitIsNotRetriedByDefault(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	})

	_, err := client.Chat(context.Background(), []ask.Message{{Role: ask.RoleUser, Content: "q"}})
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
	assert.Equal(t, int32(1), calls.Load())

	_, err = client.Embed(context.Background(), []string{"a"}, "m")
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Chat_RetriesOnRateLimitWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"test-chat",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"the answer"}}],
			"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(Config{
		BaseURL:     srv.URL + "/v1/",
		ChatModel:   "test-chat",
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
	})

	out, err := client.Chat(context.Background(), []ask.Message{{Role: ask.RoleUser, Content: "q"}})
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ChatStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])
		msgs, ok := body["messages"].([]any)
		require.True(t, ok)
		assert.Len(t, msgs, 2)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Hel", "", "lo"} {
			fmt.Fprintf(w, "data: {\"id\":\"s1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test-chat\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var tokens []string
	err := client.ChatStream(context.Background(), []ask.Message{
		{Role: ask.RoleSystem, Content: "sys"},
		{Role: ask.RoleUser, Content: "q"},
	}, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, tokens)
}

func TestClient_ChatStream_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	})

	err := client.ChatStream(context.Background(), nil, func(string) error { return nil })
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
}
