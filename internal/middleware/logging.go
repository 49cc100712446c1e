package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request, plus any errors handlers
// attached with c.Error.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if userID, ok := GetUserID(c); ok {
			attrs = append(attrs, "user_id", userID)
		}

		switch {
		case len(c.Errors) > 0:
			log.Error("request failed", append(attrs, "error", c.Errors.String())...)
		case c.Writer.Status() >= 500:
			log.Error("request failed", attrs...)
		default:
			log.Debug("request", attrs...)
		}
	}
}
