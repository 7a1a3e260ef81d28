package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/domain"
)

// sseWriter は回答トークンを Server-Sent Events として書き出す
type sseWriter struct {
	w gin.ResponseWriter
}

func newSSEWriter(c *gin.Context) *sseWriter {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(200)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
	return &sseWriter{w: c.Writer}
}

type tokenEvent struct {
	Token string `json:"token"`
}

type doneEvent struct {
	Done bool `json:"done"`
}

type errorEvent struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func (s *sseWriter) WriteToken(token string) error {
	return s.write(tokenEvent{Token: token})
}

func (s *sseWriter) WriteDone() error {
	return s.write(doneEvent{Done: true})
}

func (s *sseWriter) WriteError(err error) error {
	return s.write(errorEvent{Error: err.Error(), ErrorCode: domain.ErrorKind(err)})
}

func (s *sseWriter) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

var _ ask.EventWriter = (*sseWriter)(nil)
