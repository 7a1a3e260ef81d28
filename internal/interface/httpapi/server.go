// Package httpapi は検索・回答生成・インジェスト起動の HTTP API を提供する
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

const shutdownTimeout = 10 * time.Second

// Searcher は類似ドキュメント検索
type Searcher interface {
	FindSimilar(ctx context.Context, params retrieval.QueryParams) ([]retrieval.SimilarDocument, error)
}

// Answerer は質問応答
type Answerer interface {
	Ask(ctx context.Context, params ask.AskParams) (*ask.AskResult, error)
	AskStream(ctx context.Context, params ask.AskParams, stream *ask.Stream) error
}

// Deps はハンドラの依存関係
type Deps struct {
	Searcher          Searcher
	Answerer          Answerer
	Trigger           ingestion.Trigger
	AdminSecret       string
	CORSOrigins       []string
	DefaultQueryModel string
	Logger            *slog.Logger
}

// Server は gin ベースの HTTP サーバー
type Server struct {
	deps   Deps
	engine *gin.Engine
	logger *slog.Logger
}

// NewServer はルーティングを登録した Server を作成する
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger), corsMiddleware(deps.CORSOrigins))

	s := &Server{deps: deps, engine: engine, logger: logger}

	engine.GET("/health", s.health)

	rag := engine.Group("/rag")
	rag.POST("/findSimilar", s.findSimilar)
	rag.POST("/giveAnswer", s.giveAnswer)

	admin := engine.Group("/admin", adminSecretGuard(deps.AdminSecret))
	admin.POST("/parse-docs", s.parseDocs)

	return s
}

// Handler は http.Handler を返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run は ctx がキャンセルされるまでサーバーを動かし、終了時にグレースフルシャットダウンする
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバーを起動します", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("HTTPサーバーを停止します")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", adminSecretHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
