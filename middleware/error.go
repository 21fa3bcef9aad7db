package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const unexpectedErrorMessage = "An unexpected error occurred"

// ErrorHandler middleware recovers from any panics and handles errors
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", RequestID(c)),
					zap.ByteString("stack", debug.Stack()))

				if wantsJSON(c) {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": unexpectedErrorMessage,
					})
					return
				}
				c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte(unexpectedErrorMessage))
				c.Abort()
			}
		}()

		c.Next()
	}
}

func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}
