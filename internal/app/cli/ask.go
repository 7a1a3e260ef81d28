package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/core/ask"
)

// AskAction は質問応答コマンドのアクション
// デフォルトではトークンを受信順に標準出力へ書き出す
func AskAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.Join(cmd.Args().Slice(), " ")
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
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

	params := ask.AskParams{
		Input:        question,
		ModelName:    modelName,
		Metric:       cmd.String("metric"),
		TopChunks:    int(cmd.Int("top-chunks")),
		TopDocuments: int(cmd.Int("top-documents")),
	}

	if cmd.Bool("no-stream") {
		result, err := appCtx.Container.Ask.Ask(ctx, params)
		if err != nil {
			return err
		}
		fmt.Println(result.Answer)
		if cmd.Bool("show-sources") {
			renderPassages(os.Stdout, result.Passages)
		}
		return nil
	}

	return appCtx.Container.Ask.AskStream(ctx, params, ask.NewStream(newTextWriter(os.Stdout)))
}
