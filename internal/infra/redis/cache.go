// Package redis はクエリ Embedding の Redis キャッシュを提供する
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jinford/doc-rag/internal/core/retrieval"
)

const (
	// DefaultTTL はキャッシュの保持期間
	DefaultTTL = 24 * time.Hour

	keyPrefix = "doc-rag:qemb:"
)

// errMiss はキャッシュに値がないことを表す
var errMiss = errors.New("cache miss")

// store はキャッシュの読み書き先
type store interface {
	get(ctx context.Context, key string) ([]byte, error)
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisStore struct {
	client goredis.Cmdable
}

func (s redisStore) get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, errMiss
	}
	return b, err
}

func (s redisStore) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// QueryEmbeddingCache は単一クエリの Embedding をキャッシュする Embedder
// キャッシュの障害は検索を止めず、下位の Embedder にそのまま委譲する
type QueryEmbeddingCache struct {
	next   retrieval.Embedder
	store  store
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOption は QueryEmbeddingCache のオプション設定
type CacheOption func(*QueryEmbeddingCache)

// WithTTL は保持期間を設定する
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *QueryEmbeddingCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *QueryEmbeddingCache) {
		c.logger = logger
	}
}

// NewQueryEmbeddingCache は新しい QueryEmbeddingCache を作成する
func NewQueryEmbeddingCache(client goredis.Cmdable, next retrieval.Embedder, opts ...CacheOption) *QueryEmbeddingCache {
	return newQueryEmbeddingCache(redisStore{client: client}, next, opts...)
}

func newQueryEmbeddingCache(s store, next retrieval.Embedder, opts ...CacheOption) *QueryEmbeddingCache {
	c := &QueryEmbeddingCache{
		next:   next,
		store:  s,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed はキャッシュを引き、なければ下位の Embedder を呼んで保存する
// 複数入力はキャッシュせずに委譲する
func (c *QueryEmbeddingCache) Embed(ctx context.Context, texts []string, modelName string) ([][]float32, error) {
	if len(texts) != 1 {
		return c.next.Embed(ctx, texts, modelName)
	}

	key := cacheKey(modelName, texts[0])
	if vec, ok := c.lookup(ctx, key); ok {
		return [][]float32{vec}, nil
	}

	vectors, err := c.next.Embed(ctx, texts, modelName)
	if err != nil {
		return nil, err
	}
	// 件数の検証は呼び出し側で行うので、想定外の形は保存しない
	if len(vectors) == 1 {
		c.save(ctx, key, vectors[0])
	}
	return vectors, nil
}

func (c *QueryEmbeddingCache) lookup(ctx context.Context, key string) ([]float32, bool) {
	b, err := c.store.get(ctx, key)
	if err != nil {
		if !errors.Is(err, errMiss) {
			c.logger.Warn("query cache read failed", "error", err)
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(b, &vec); err != nil || len(vec) == 0 {
		c.logger.Warn("query cache entry is corrupted", "key", key)
		return nil, false
	}
	return vec, true
}

func (c *QueryEmbeddingCache) save(ctx context.Context, key string, vec []float32) {
	b, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.store.set(ctx, key, b, c.ttl); err != nil {
		c.logger.Warn("query cache write failed", "error", err)
	}
}

// cacheKey はモデル名とテキストのハッシュからキーを作る
func cacheKey(modelName, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s%s:%s", keyPrefix, modelName, hex.EncodeToString(sum[:]))
}

// NewClient は Redis クライアントを作成し疎通を確認する
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

var _ retrieval.Embedder = (*QueryEmbeddingCache)(nil)
