package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) findSimilar(c *gin.Context) {
	var req findSimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	docs, err := s.deps.Searcher.FindSimilar(c.Request.Context(), req.params(s.deps.DefaultQueryModel))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if docs == nil {
		docs = []retrieval.SimilarDocument{}
	}
	c.JSON(http.StatusOK, docs)
}

func (s *Server) giveAnswer(c *gin.Context) {
	var req giveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	params := req.params(s.deps.DefaultQueryModel)

	if !req.streaming() {
		res, err := s.deps.Answerer.Ask(c.Request.Context(), params)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	// ストリーム開始後はステータスを変えられないので入力はここで検証する
	if _, err := (retrieval.PassageParams{
		Input:        params.Input,
		ModelName:    params.ModelName,
		Metric:       params.Metric,
		TopChunks:    params.TopChunks,
		TopDocuments: params.TopDocuments,
	}).Validate(); err != nil {
		s.writeError(c, err)
		return
	}

	stream := ask.NewStream(newSSEWriter(c))
	if err := s.deps.Answerer.AskStream(c.Request.Context(), params, stream); err != nil {
		s.logger.Warn("answer stream ended with error", "state", stream.State().String(), "error", err)
	}
}

func (s *Server) parseDocs(c *gin.Context) {
	var req parseDocsRequest
	// 本文なしはデフォルト設定で実行する
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	params := req.params()

	s.logger.Info("starting document parsing",
		"delayMs", params.DelayMs,
		"chunkSize", params.ChunkSize,
		"chunkOverlap", params.ChunkOverlap,
		"batchSize", params.BatchSize,
		"limit", params.Limit,
	)

	// 切断やプロキシのタイムアウトで実行中のインジェストを中断しない
	res, err := s.deps.Trigger.Trigger(context.WithoutCancel(c.Request.Context()), params)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if res.Stats != nil {
		c.JSON(http.StatusOK, parseDocsResponse{Message: "Parsing completed successfully", Result: res})
		return
	}
	c.JSON(http.StatusAccepted, parseDocsResponse{Message: "Parsing started", Result: res})
}
