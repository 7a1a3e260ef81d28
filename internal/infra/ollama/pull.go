package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Pull はモデルをダウンロードする（完了まで待つ）
func (c *Client) Pull(ctx context.Context, model string) error {
	resp, err := c.post(ctx, "pull", "/api/pull", pullRequest{Model: model})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return decodeError(ctx, "pull", err)
	}
	if out.Error != "" {
		return fmt.Errorf("pull %s: %s", model, out.Error)
	}

	c.logger.Info("model pulled", "model", model, "status", out.Status)
	return nil
}

// PullAll は全モデルをダウンロードし、失敗はログに残して続行する
// 戻り値は失敗したモデル名
func (c *Client) PullAll(ctx context.Context, models []string) []string {
	var failed []string
	for _, m := range models {
		if m == "" {
			continue
		}
		if err := c.Pull(ctx, m); err != nil {
			c.logger.Warn("failed to pull model", "model", m, "error", err)
			failed = append(failed, m)
		}
	}
	return failed
}
