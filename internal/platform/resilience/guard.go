// Package resilience はモデルバックエンド呼び出しをレート制限とサーキットブレーカーで保護する
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/jinford/doc-rag/internal/core/domain"
)

const (
	DefaultMaxRequests  = 3
	DefaultInterval     = 30 * time.Second
	DefaultOpenTimeout  = 30 * time.Second
	DefaultTripRequests = 5
	DefaultTripRatio    = 0.6
)

// Config は Guard の設定
type Config struct {
	RPM   int // 1分あたりの呼び出し上限（0 は無制限）
	Burst int

	MaxRequests  uint32        // half-open で通す呼び出し数
	Interval     time.Duration // closed 状態でカウンタをリセットする間隔
	OpenTimeout  time.Duration // open から half-open へ移るまでの時間
	TripRequests uint32        // 判定に必要な最小呼び出し数
	TripRatio    float64       // open にする失敗率
}

func (c Config) withDefaults() Config {
	if c.MaxRequests == 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = DefaultOpenTimeout
	}
	if c.TripRequests == 0 {
		c.TripRequests = DefaultTripRequests
	}
	if c.TripRatio == 0 {
		c.TripRatio = DefaultTripRatio
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// Guard は1つのバックエンドへの呼び出しを保護する
// 一時的エラーだけを失敗として数え、契約違反やキャンセルでは open にしない
type Guard struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGuard は新しい Guard を作成する
func NewGuard(name string, cfg Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.RPM > 0 {
		limit = rate.Limit(float64(cfg.RPM) / 60.0)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.TripRequests && failureRatio >= cfg.TripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrTransientProvider)
		},
	})

	return &Guard{
		name:    name,
		breaker: breaker,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
	}
}

// Do はレート制限を待ってからブレーカー越しに fn を実行する
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewTransientError(g.name, op, err)
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewTransientError(g.name, op, err)
	}
	return err
}

// State はブレーカーの現在状態を返す
func (g *Guard) State() string {
	return g.breaker.State().String()
}
