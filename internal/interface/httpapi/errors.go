package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jinford/doc-rag/internal/core/domain"
)

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// statusFor はエラー分類を HTTP ステータスに変換する
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration), errors.Is(err, domain.ErrUnsupportedMetric):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProviderContractViolation):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrTransientProvider):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "kind", domain.ErrorKind(err), "error", err)
	}
	c.JSON(status, errorResponse{ErrorCode: domain.ErrorKind(err), Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{
		ErrorCode: domain.ErrorKind(domain.ErrInvalidConfiguration),
		Message:   err.Error(),
	})
}
