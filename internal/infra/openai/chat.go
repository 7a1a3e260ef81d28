package openai

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/domain"
)

func toMessageParams(messages []ask.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case ask.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case ask.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (c *Client) chatParams(messages []ask.Message) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.cfg.ChatModel),
		Messages: toMessageParams(messages),
	}
}

// Chat は回答全体を一度に生成する
func (c *Client) Chat(ctx context.Context, messages []ask.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var completion *openai.ChatCompletion
	err := c.withRetry(ctx, "chat", func(ctx context.Context) error {
		var err error
		completion, err = c.client.Chat.Completions.New(ctx, c.chatParams(messages))
		return err
	})
	if err != nil {
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", domain.NewContractError(providerName, "chat", "no completion choices returned")
	}

	c.logger.Debug("chat completed",
		"model", completion.Model,
		"tokensUsed", completion.Usage.TotalTokens,
	)
	return completion.Choices[0].Message.Content, nil
}

// ChatStream は差分トークンを受信順に onToken へ渡す
func (c *Client) ChatStream(ctx context.Context, messages []ask.Message, onToken func(string) error) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.chatParams(messages))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if token := chunk.Choices[0].Delta.Content; token != "" {
			if err := onToken(token); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify("chat", err)
	}
	return nil
}

// インターフェース実装の確認
var _ ask.ChatClient = (*Client)(nil)
