package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration はチャンク・メトリクス・上限などのパラメータ不正
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnsupportedMetric は未知の距離メトリクス
	ErrUnsupportedMetric = errors.New("unsupported metric")

	// ErrProviderContractViolation はプロバイダ応答の形式・件数不一致（リトライしない）
	ErrProviderContractViolation = errors.New("provider contract violation")

	// ErrTransientProvider はネットワーク・タイムアウト等の一時的なプロバイダエラー
	ErrTransientProvider = errors.New("transient provider error")

	// ErrNotFound は参照先のレコードが存在しない
	ErrNotFound = errors.New("not found")

	// ErrDataIntegrity は一意であるべき値の重複などデータ整合性違反
	ErrDataIntegrity = errors.New("data integrity violation")
)

// ProviderError はモデルバックエンド呼び出しの失敗を表す
type ProviderError struct {
	Op       string // embed, rerank, chat など
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewTransientError は一時的エラーとして分類される ProviderError を返す
func NewTransientError(provider, op string, err error) error {
	return &ProviderError{Op: op, Provider: provider, Err: fmt.Errorf("%w: %w", ErrTransientProvider, err)}
}

// NewContractError は契約違反として分類される ProviderError を返す
func NewContractError(provider, op string, format string, args ...any) error {
	return &ProviderError{Op: op, Provider: provider, Err: fmt.Errorf("%w: %s", ErrProviderContractViolation, fmt.Sprintf(format, args...))}
}

// ErrorKind はエラーを分類名に変換する（ログ・HTTPレスポンス用）
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedMetric):
		return "unsupported_metric"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrProviderContractViolation):
		return "provider_contract_violation"
	case errors.Is(err, ErrTransientProvider):
		return "transient_provider_error"
	case errors.Is(err, ErrDataIntegrity):
		return "data_integrity_violation"
	default:
		return "internal_error"
	}
}
