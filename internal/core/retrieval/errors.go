package retrieval

import (
	"fmt"

	"github.com/jinford/doc-rag/internal/core/domain"
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
