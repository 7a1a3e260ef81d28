package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const adminSecretHeader = "x-admin-secret"

// adminSecretGuard は x-admin-secret ヘッダーが ADMIN_SECRET と一致する場合だけ通す
func adminSecretGuard(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				ErrorCode: "unauthorized",
				Message:   "ADMIN_SECRET not configured",
			})
			return
		}

		provided := c.GetHeader(adminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				ErrorCode: "unauthorized",
				Message:   "Invalid admin secret",
			})
			return
		}
		c.Next()
	}
}
