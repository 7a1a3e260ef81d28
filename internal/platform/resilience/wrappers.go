package resilience

import (
	"context"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// Embedder は Guard 越しに Embedding を生成する
type Embedder struct {
	next  retrieval.Embedder
	guard *Guard
}

func NewEmbedder(next retrieval.Embedder, guard *Guard) *Embedder {
	return &Embedder{next: next, guard: guard}
}

func (e *Embedder) Embed(ctx context.Context, texts []string, modelName string) ([][]float32, error) {
	var out [][]float32
	err := e.guard.Do(ctx, "embed", func(ctx context.Context) error {
		var err error
		out, err = e.next.Embed(ctx, texts, modelName)
		return err
	})
	return out, err
}

// Reranker は Guard 越しにリランクする
type Reranker struct {
	next  retrieval.Reranker
	guard *Guard
}

func NewReranker(next retrieval.Reranker, guard *Guard) *Reranker {
	return &Reranker{next: next, guard: guard}
}

func (r *Reranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]int, error) {
	var out []int
	err := r.guard.Do(ctx, "rerank", func(ctx context.Context) error {
		var err error
		out, err = r.next.Rerank(ctx, query, documents, topN)
		return err
	})
	return out, err
}

// ChatClient は Guard 越しに回答を生成する
// ストリーミングは開始から終了までを1回の呼び出しとして数える
type ChatClient struct {
	next  ask.ChatClient
	guard *Guard
}

func NewChatClient(next ask.ChatClient, guard *Guard) *ChatClient {
	return &ChatClient{next: next, guard: guard}
}

func (c *ChatClient) Chat(ctx context.Context, messages []ask.Message) (string, error) {
	var out string
	err := c.guard.Do(ctx, "chat", func(ctx context.Context) error {
		var err error
		out, err = c.next.Chat(ctx, messages)
		return err
	})
	return out, err
}

func (c *ChatClient) ChatStream(ctx context.Context, messages []ask.Message, onToken func(string) error) error {
	return c.guard.Do(ctx, "chat", func(ctx context.Context) error {
		return c.next.ChatStream(ctx, messages, onToken)
	})
}

// Enricher は Guard 越しに翻訳・要約する
type Enricher struct {
	next  ingestion.Enricher
	guard *Guard
}

func NewEnricher(next ingestion.Enricher, guard *Guard) *Enricher {
	return &Enricher{next: next, guard: guard}
}

func (e *Enricher) Translate(ctx context.Context, text string) (string, error) {
	var out string
	err := e.guard.Do(ctx, "translate", func(ctx context.Context) error {
		var err error
		out, err = e.next.Translate(ctx, text)
		return err
	})
	return out, err
}

func (e *Enricher) Summarize(ctx context.Context, text string) (string, error) {
	var out string
	err := e.guard.Do(ctx, "summarize", func(ctx context.Context) error {
		var err error
		out, err = e.next.Summarize(ctx, text)
		return err
	})
	return out, err
}

var (
	_ retrieval.Embedder = (*Embedder)(nil)
	_ ingestion.Embedder = (*Embedder)(nil)
	_ retrieval.Reranker = (*Reranker)(nil)
	_ ask.ChatClient     = (*ChatClient)(nil)
	_ ingestion.Enricher = (*Enricher)(nil)
)
