package ollama

import (
	"context"
	"encoding/json"

	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed は /api/embed でバッチの Embedding を生成する
// 件数の検証は呼び出し側で行う
func (c *Client) Embed(ctx context.Context, texts []string, modelName string) ([][]float32, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.post(ctx, "embed", "/api/embed", embedRequest{Model: modelName, Input: texts})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, decodeError(ctx, "embed", err)
	}

	c.logger.Debug("embeddings generated",
		"model", modelName,
		"inputs", len(texts),
		"vectors", len(out.Embeddings),
	)
	return out.Embeddings, nil
}

var (
	_ ingestion.Embedder = (*Client)(nil)
	_ retrieval.Embedder = (*Client)(nil)
)
