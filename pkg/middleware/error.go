package middleware

import (
	"net/http"

	"mission-control/pkg/errutil"
	"mission-control/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached to the context. BaseErrors keep their
// status and message; anything else is logged and reported as a generic 500.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		log := logger.FromContext(c.Request.Context()).With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
		)

		if be, ok := errutil.As(last.Err); ok {
			status := be.Code.HTTPStatus()
			if status >= http.StatusInternalServerError {
				log.Error("request failed", zap.Error(be))
			}
			c.AbortWithStatusJSON(status, be.JSON())
			return
		}

		log.Error("unhandled error", zap.Error(last.Err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromContext(c.Request.Context()).Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
