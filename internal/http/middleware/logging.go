// README: Request logging with a request id.
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderRequestID = "X-Request-ID"

func Logging(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(HeaderRequestID, rid)
		c.Next()

		attrs := []any{
			"request_id", rid,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id := Caller(c); id != nil {
			attrs = append(attrs, "role", id.Role(), "caller", id.ID(), "uid", tokenUID(c))
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("http request", attrs...)
		case len(c.Errors) > 0:
			log.Warn("http request", append(attrs, "err", c.Errors.String())...)
		default:
			log.Info("http request", attrs...)
		}
	}
}
