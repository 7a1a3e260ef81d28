package ask

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// ChatClient はチャットバックエンド通信インターフェース
type ChatClient interface {
	// Chat は単一の応答文字列を返す
	Chat(ctx context.Context, messages []Message) (string, error)
	// ChatStream は受信したトークンごとに onToken を呼ぶ
	// onToken がエラーを返した場合は受信を中断してそのエラーを返す
	ChatStream(ctx context.Context, messages []Message, onToken func(token string) error) error
}

// PassageRetriever はクエリに対するコンテキストパッセージを取得する
type PassageRetriever interface {
	RetrievePassages(ctx context.Context, params retrieval.PassageParams) ([]retrieval.MergedPassage, error)
}

// AskService は質問応答のビジネスロジックを提供する
type AskService struct {
	retriever PassageRetriever
	llm       ChatClient
	logger    *slog.Logger
}

type AskServiceOption func(*AskService)

// WithAskLogger は AskService にロガーを設定する
func WithAskLogger(logger *slog.Logger) AskServiceOption {
	return func(s *AskService) {
		s.logger = logger
	}
}

// NewAskService は新しいAskServiceを作成する
func NewAskService(retriever PassageRetriever, llm ChatClient, opts ...AskServiceOption) *AskService {
	svc := &AskService{
		retriever: retriever,
		llm:       llm,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// BuildMessages はパッセージを取得してチャット用メッセージを組み立てる
func (s *AskService) BuildMessages(ctx context.Context, params AskParams) ([]Message, []retrieval.MergedPassage, error) {
	passages, err := s.retriever.RetrievePassages(ctx, params.passageParams())
	if err != nil {
		return nil, nil, err
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	s.logger.Info("context passages selected",
		"query", params.Input,
		"passages", len(passages),
	)

	return ComposeMessages(params.Input, texts), passages, nil
}

// Ask は質問に対して単一の回答を生成する
func (s *AskService) Ask(ctx context.Context, params AskParams) (*AskResult, error) {
	messages, passages, err := s.BuildMessages(ctx, params)
	if err != nil {
		return nil, err
	}

	answer, err := s.llm.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	s.logger.Info("ask completed successfully", "answerLength", len(answer))

	return &AskResult{Answer: answer, Passages: passages}, nil
}

// AskStream は回答トークンを到着順に stream へ書き出す
// 呼び出し元が切断した場合（ctx のキャンセル）は書き込みをやめて即座に戻る
func (s *AskService) AskStream(ctx context.Context, params AskParams, stream *Stream) error {
	messages, _, err := s.BuildMessages(ctx, params)
	if err != nil {
		s.closeWithError(ctx, stream, err)
		return err
	}

	tokens := 0
	err = s.llm.ChatStream(ctx, messages, func(token string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tokens++
		return stream.Token(token)
	})
	if err != nil {
		s.closeWithError(ctx, stream, err)
		return fmt.Errorf("failed to stream answer: %w", err)
	}

	if err := stream.Finish(); err != nil {
		return err
	}

	s.logger.Info("ask stream completed", "tokens", tokens)
	return nil
}

func (s *AskService) closeWithError(ctx context.Context, stream *Stream, err error) {
	if ctx.Err() != nil {
		s.logger.Info("ask stream abandoned by caller", "error", ctx.Err())
		stream.Abandon()
		return
	}
	s.logger.Error("ask stream failed", "error", err)
	stream.Fail(err)
}
