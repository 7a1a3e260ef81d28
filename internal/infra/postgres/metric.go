package postgres

import (
	"fmt"

	"github.com/jinford/doc-rag/internal/core/domain"
)

// distanceOperators はメトリクスと pgvector 演算子の対応
// SQL に埋め込むのはこの表の値のみで、ベクトルは常にバインドパラメータで渡す
var distanceOperators = map[domain.Metric]string{
	domain.MetricCosine:       "<=>",
	domain.MetricEuclidean:    "<->",
	domain.MetricInnerProduct: "<#>",
}

// DistanceOperator は Metric に対応する演算子を返す
func DistanceOperator(metric domain.Metric) (string, error) {
	op, ok := distanceOperators[metric]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedMetric, metric)
	}
	return op, nil
}
