package gwhttp

import (
	"fmt"
	"time"

	"github.com/oxyl/shardgate/pkg/gwlog"
	"go.uber.org/zap"
)

// LoggerWithGWLog logs every request at debug level.
func LoggerWithGWLog(log gwlog.Log) HandlerFunc {
	return func(c *Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		if latency > time.Minute {
			latency = latency.Truncate(time.Second)
		}

		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug(fmt.Sprintf("|%s| %d| %s", c.Request.Method, c.Writer.Status(), path),
			zap.String("clientip", c.ClientIP()),
			zap.Int("size", c.Writer.Size()),
			zap.String("latency", latency.String()))
	}
}
