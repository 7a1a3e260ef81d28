package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
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
	return NewClient(Config{BaseURL: srv.URL, ChatModel: "chat-model", MainModel: "main", TranslationModel: "tr"})
}

func TestClient_Embed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	})

	vectors, err := client.Embed(context.Background(), []string{"a", "b"}, "nomic-embed-text")
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 0.3, vectors[1][0], 1e-6)
}

func TestClient_Embed_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, "boom", domain.ErrTransientProvider},
		{"rate limited", http.StatusTooManyRequests, "slow down", domain.ErrTransientProvider},
		{"bad request", http.StatusBadRequest, "model not found", domain.ErrProviderContractViolation},
		{"malformed body", http.StatusOK, "{not json", domain.ErrProviderContractViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Embed(context.Background(), []string{"a"}, "m")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Embed_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{BaseURL: url}).Embed(context.Background(), []string{"a"}, "m")
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
}

// stallingHandler は本文の途中まで書き込んだあと応答を止める
func stallingHandler(partial string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(partial))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}
}

func TestClient_TimeoutWhileReadingBodyIsTransient(t *testing.T) {
	srv := httptest.NewServer(stallingHandler(`{"embeddings":[[0.1,`))
	t.Cleanup(srv.Close)
	client := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := client.Embed(context.Background(), []string{"a"}, "m")
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
	assert.NotErrorIs(t, err, domain.ErrProviderContractViolation)

	_, err = client.Chat(context.Background(), []ask.Message{{Role: ask.RoleUser, Content: "q"}})
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
	assert.NotErrorIs(t, err, domain.ErrProviderContractViolation)
}

func TestClient_Chat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "chat-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"answer"},"done":true}`))
	})

	out, err := client.Chat(context.Background(), []ask.Message{
		{Role: ask.RoleSystem, Content: "sys"},
		{Role: ask.RoleUser, Content: "q"},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
}

func TestClient_ChatStream_SkipsGarbledLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		lines := []string{
			`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
			`{"message":{"role":"assis`,
			``,
			`{"message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true}`,
			`{"message":{"role":"assistant","content":"ignored"},"done":false}`,
		}
		fmt.Fprint(w, strings.Join(lines, "\n"))
	})

	var tokens []string
	err := client.ChatStream(context.Background(), []ask.Message{{Role: ask.RoleUser, Content: "q"}}, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, tokens)
}

func TestClient_ChatStream_IncompleteStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"partial"},"done":false}`)
	})

	var tokens []string
	err := client.ChatStream(context.Background(), nil, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
	assert.Equal(t, []string{"partial"}, tokens)
}

func TestClient_ChatStream_ProviderErrorRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"error":"model crashed"}`)
	})

	err := client.ChatStream(context.Background(), nil, func(string) error { return nil })
	assert.ErrorIs(t, err, domain.ErrProviderContractViolation)
}

func TestClient_ChatStream_CallbackErrorStops(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"b"},"done":true}`)
	})

	stop := errors.New("client gone")
	calls := 0
	err := client.ChatStream(context.Background(), nil, func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestClient_TranslateAndSummarize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		switch req.Model {
		case "tr":
			assert.Contains(t, req.Prompt, "Translate from Russian to English: Привет")
			_, _ = w.Write([]byte(`{"response":"  Sure! {\"answer\": \"Hello\"} ","done":true}`))
		case "main":
			assert.Contains(t, req.Prompt, "Summarize the following text chunk")
			_, _ = w.Write([]byte(`{"response":"no json here","done":true}`))
		default:
			t.Errorf("unexpected model %q", req.Model)
		}
	})

	translated, err := client.Translate(context.Background(), "Привет")
	require.NoError(t, err)
	assert.Equal(t, "Hello", translated)

	summary, err := client.Summarize(context.Background(), "long text")
	require.NoError(t, err)
	assert.Equal(t, "no json here", summary)
}

func TestExtractAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", `{"answer":"x"}`, "x"},
		{"wrapped", `prefix {"answer": "y"} suffix`, "y"},
		{"no braces", "just text", "just text"},
		{"reversed braces", "} {", "} {"},
		{"invalid json", `{"answer": }`, `{"answer": }`},
		{"missing answer", `{"other":"z"}`, `{"other":"z"}`},
		{"non-string answer", `{"answer":1}`, `{"answer":1}`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAnswer(tt.in))
		})
	}
}

func TestClient_PullAll(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pull", r.URL.Path)
		var req pullRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Model == "missing" {
			_, _ = w.Write([]byte(`{"error":"pull model manifest: file does not exist"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	failed := client.PullAll(context.Background(), []string{"nomic-embed-text", "", "missing"})
	assert.Equal(t, []string{"missing"}, failed)
}
