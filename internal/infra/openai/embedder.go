package openai

import (
	"context"

	"github.com/openai/openai-go/v3"

	"github.com/jinford/doc-rag/internal/core/domain"
	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// Embed はバッチで Embedding を生成する
// 戻り値はレスポンスの index 順に並べ直す
func (c *Client) Embed(ctx context.Context, texts []string, modelName string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(modelName),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}

	var resp *openai.CreateEmbeddingResponse
	err := c.withRetry(ctx, "embed", func(ctx context.Context) error {
		var err error
		resp, err = c.client.Embeddings.New(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(embeddings) || embeddings[idx] != nil {
			return nil, domain.NewContractError(providerName, "embed", "invalid embedding index %d", data.Index)
		}
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		embeddings[idx] = vector
	}

	c.logger.Debug("embeddings generated",
		"model", modelName,
		"inputs", len(texts),
		"vectors", len(embeddings),
	)
	return embeddings, nil
}

var (
	_ ingestion.Embedder = (*Client)(nil)
	_ retrieval.Embedder = (*Client)(nil)
)
