package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/domain"
	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// renderSimilarDocuments は検索結果をテーブル形式で表示します
func renderSimilarDocuments(w io.Writer, docs []retrieval.SimilarDocument) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "該当するドキュメントはありません")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "Title", "Link", "Distance")
	for i, d := range docs {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncateString(d.Title, 60),
			d.Link,
			fmt.Sprintf("%.4f", d.Distance),
		)
	}
	table.Render()
}

// renderModels は登録済みモデルをテーブル形式で表示します
func renderModels(w io.Writer, models []*domain.Model) {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Dimension", "Query Prefix", "Document Prefix")
	for _, m := range models {
		table.Append(
			m.NameInBackend,
			fmt.Sprintf("%d", m.VectorDimension),
			fmt.Sprintf("%q", m.QueryPrefix),
			fmt.Sprintf("%q", m.DocumentPrefix),
		)
	}
	table.Render()
}

// renderStats はインジェストの集計を表示します
func renderStats(w io.Writer, stats *ingestion.Stats) {
	fmt.Fprintln(w, "\n=== インジェスト結果 ===")

	table := tablewriter.NewWriter(w)
	table.Header("項目", "値")
	table.Append("成功", fmt.Sprintf("%t", stats.Success))
	table.Append("対象ドキュメント数", fmt.Sprintf("%d", stats.Total))
	table.Append("処理済みドキュメント数", fmt.Sprintf("%d", stats.Documents))
	table.Append("失敗ドキュメント数", fmt.Sprintf("%d", stats.FailedDocuments))
	table.Append("スキップしたドキュメント数", fmt.Sprintf("%d", stats.SkippedDocuments))
	table.Append("チャンク数", fmt.Sprintf("%d", stats.Chunks))
	table.Append("保存した Embedding 数", fmt.Sprintf("%d", stats.Embeddings))
	table.Append("失敗した Embedding 数", fmt.Sprintf("%d", stats.FailedEmbeddings))
	table.Append("失敗バッチ数", fmt.Sprintf("%d", stats.FailedBatches))
	table.Append("件数不一致バッチ数", fmt.Sprintf("%d", stats.Mismatches))
	table.Append("削除した古い Embedding 数", fmt.Sprintf("%d", stats.Pruned))
	table.Append("所要時間", stats.Duration.String())
	table.Render()
}

// renderPassages は回答に使ったパッセージを表示します
func renderPassages(w io.Writer, passages []retrieval.MergedPassage) {
	if len(passages) == 0 {
		return
	}
	fmt.Fprintln(w, "\n--- 参照パッセージ ---")
	for i, p := range passages {
		fmt.Fprintf(w, "[%d] document=%s chunks=%v distance=%.4f\n", i+1, p.DocumentID, p.SourceChunkIndices, p.MinDistance)
		fmt.Fprintf(w, "    %s\n", truncateString(strings.ReplaceAll(p.Text, "\n", " "), 120))
	}
}

// truncateString は文字数で切り詰めます
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// textWriter は回答トークンをそのまま端末へ書き出す
type textWriter struct {
	w io.Writer
}

func newTextWriter(w io.Writer) *textWriter {
	return &textWriter{w: w}
}

func (t *textWriter) WriteToken(token string) error {
	_, err := io.WriteString(t.w, token)
	return err
}

func (t *textWriter) WriteDone() error {
	_, err := io.WriteString(t.w, "\n")
	return err
}

func (t *textWriter) WriteError(err error) error {
	_, werr := fmt.Fprintf(t.w, "\n[error] %s: %v\n", domain.ErrorKind(err), err)
	return werr
}

var _ ask.EventWriter = (*textWriter)(nil)
