package domain

import (
	"fmt"
	"strings"
)

// Metric はベクトル間の距離関数
type Metric string

const (
	MetricCosine       Metric = "cosine"
	MetricEuclidean    Metric = "euclidean"
	MetricInnerProduct Metric = "inner_product"
)

// metricAliases は受け付ける表記と正規化後の Metric の対応
var metricAliases = map[string]Metric{
	"cosine":        MetricCosine,
	"euclidean":     MetricEuclidean,
	"l2":            MetricEuclidean,
	"inner_product": MetricInnerProduct,
	"ip":            MetricInnerProduct,
}

// ParseMetric は表記ゆれを吸収して Metric に変換する
// 未知の値はクエリ実行前に ErrUnsupportedMetric で失敗させる
func ParseMetric(name string) (Metric, error) {
	m, ok := metricAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMetric, name)
	}
	return m, nil
}

func (m Metric) String() string {
	return string(m)
}
