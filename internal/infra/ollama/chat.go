package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/domain"
)

// maxLineSize は NDJSON 1行の最大長
const maxLineSize = 1 << 20

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

var errStreamIncomplete = errors.New("stream closed before completion")

func toChatMessages(messages []ask.Message) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		out[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

// Chat は /api/chat を非ストリーミングで呼び出す
func (c *Client) Chat(ctx context.Context, messages []ask.Message) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.post(ctx, "chat", "/api/chat", chatRequest{
		Model:    c.cfg.ChatModel,
		Messages: toChatMessages(messages),
		Stream:   false,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", decodeError(ctx, "chat", err)
	}
	if out.Error != "" {
		return "", domain.NewContractError(providerName, "chat", "%s", out.Error)
	}
	return out.Message.Content, nil
}

// ChatStream は /api/chat をストリーミングで呼び出し、改行区切りの JSON を1行ずつ処理する
// 解析できない行は読み飛ばす
func (c *Client) ChatStream(ctx context.Context, messages []ask.Message, onToken func(string) error) error {
	resp, err := c.post(ctx, "chat", "/api/chat", chatRequest{
		Model:    c.cfg.ChatModel,
		Messages: toChatMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec chatResponse
		if err := json.Unmarshal(line, &rec); err != nil {
			c.logger.Debug("skipping unparsable stream record", "error", err)
			continue
		}
		if rec.Error != "" {
			return domain.NewContractError(providerName, "chat", "%s", rec.Error)
		}
		if rec.Message.Content != "" {
			if err := onToken(rec.Message.Content); err != nil {
				return err
			}
		}
		if rec.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewTransientError(providerName, "chat", fmt.Errorf("read stream: %w", err))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return domain.NewTransientError(providerName, "chat", errStreamIncomplete)
}

var _ ask.ChatClient = (*Client)(nil)
