// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"rental-agents-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope. Responses
// that were already written, including hijacked websocket upgrades, are only
// logged.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			written := c.Writer.Written()
			logger.Error("handler panicked",
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("request_id", GetRequestID(c)),
				zap.Bool("response_written", written),
				zap.Stack("stack"),
			)
			if written {
				c.Abort()
				return
			}
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}()
		c.Next()
	}
}
