package ingestion

import (
	"context"
	"log/slog"

	"github.com/jinford/doc-rag/internal/core/chunk"
	"github.com/jinford/doc-rag/internal/core/domain"
)

// BatchResult は1バッチ分の処理結果
type BatchResult struct {
	Start  int // バッチ先頭の ChunkIndex
	Size   int
	Saved  int
	Failed int   // 保存に失敗したチャンク数
	Err    error // バッチ全体が失敗した場合のエラー（契約違反・一時的エラー）
}

// ModelResult はドキュメント×モデル1組の処理結果
type ModelResult struct {
	Model   string
	Batches []BatchResult
	Pruned  int64
}

// embedBatches は1つのドキュメント×モデルについて Embedding を逐次バッチで生成・保存する
// バッチ i の結果はチャンク列の [i*batchSize, ...) に対応するため順序通りに処理する
func embedBatches(
	ctx context.Context,
	embedder Embedder,
	writer EmbeddingWriter,
	logger *slog.Logger,
	doc *domain.Document,
	model *domain.Model,
	chunks []chunk.Chunk,
	inputs []string,
	batchSize int,
) ModelResult {
	result := ModelResult{Model: model.NameInBackend}
	// チャンクが無い場合は古い行の削除も行わない
	if len(chunks) == 0 {
		return result
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, 0, len(batch))
		for i := range batch {
			texts = append(texts, model.DocumentPrefix+inputs[start+i])
		}

		br := BatchResult{Start: start, Size: len(batch)}

		vectors, err := embedder.Embed(ctx, texts, model.NameInBackend)
		if err != nil {
			logger.Error("バッチEmbedding生成に失敗",
				"documentID", doc.ID,
				"model", model.NameInBackend,
				"batchStart", start,
				"batchSize", len(batch),
				"error", err,
			)
			br.Err = err
			result.Batches = append(result.Batches, br)
			continue
		}

		if len(vectors) != len(batch) {
			br.Err = domain.NewContractError("embedder", "embed", "returned %d vectors for %d inputs", len(vectors), len(batch))
			logger.Error("Embeddingベクトル数が不一致のためバッチをスキップ",
				"documentID", doc.ID,
				"model", model.NameInBackend,
				"batchStart", start,
				"expected", len(batch),
				"actual", len(vectors),
			)
			result.Batches = append(result.Batches, br)
			continue
		}

		for i, ch := range batch {
			_, err := writer.SaveEmbedding(ctx, &domain.Embedding{
				DocumentID:  doc.ID,
				ModelID:     model.ID,
				ChunkIndex:  ch.Index,
				Vector:      vectors[i],
				ChunkText:   ch.FullText,
				DisplayText: ch.DisplayText,
			})
			if err != nil {
				logger.Error("Embeddingの保存に失敗",
					"documentID", doc.ID,
					"model", model.NameInBackend,
					"chunkIndex", ch.Index,
					"error", err,
				)
				br.Failed++
				continue
			}
			br.Saved++
		}

		result.Batches = append(result.Batches, br)
	}

	// 今回のチャンク数を超えるインデックスは以前の分割で作られた古い行
	pruned, err := writer.DeleteEmbeddingsFrom(ctx, doc.ID, model.ID, len(chunks))
	if err != nil {
		logger.Warn("古いEmbeddingの削除に失敗",
			"documentID", doc.ID,
			"model", model.NameInBackend,
			"fromIndex", len(chunks),
			"error", err,
		)
	} else if pruned > 0 {
		logger.Info("古いEmbeddingを削除",
			"documentID", doc.ID,
			"model", model.NameInBackend,
			"count", pruned,
		)
	}
	result.Pruned = pruned

	return result
}
