package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// QueryAction は類似ドキュメントを検索するコマンドのアクション
func QueryAction(ctx context.Context, cmd *cli.Command) error {
	input := strings.Join(cmd.Args().Slice(), " ")
	if input == "" {
		return fmt.Errorf("検索文を指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	modelName := cmd.String("model")
	if modelName == "" {
		modelName = appCtx.Config.Embedding.DefaultQueryModel
	}

	docs, err := appCtx.Container.Retrieval.FindSimilar(ctx, retrieval.QueryParams{
		Input:     input,
		ModelName: modelName,
		Metric:    cmd.String("metric"),
		Limit:     int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	renderSimilarDocuments(os.Stdout, docs)
	return nil
}
