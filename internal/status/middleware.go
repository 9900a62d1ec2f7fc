package status

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccessLog returns a middleware writing one JSON line per request to out.
// Paths listed in notLogged are served but not logged.
func AccessLog(out io.Writer, notLogged ...string) gin.HandlerFunc {
	visitLog := logrus.New()
	visitLog.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
	visitLog.Out = out
	visitLog.SetLevel(logrus.DebugLevel)

	var skip map[string]struct{}
	if len(notLogged) > 0 {
		skip = make(map[string]struct{}, len(notLogged))
		for _, p := range notLogged {
			skip[p] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		start := time.Now()
		c.Next()

		if _, ok := skip[path]; ok {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}

		stop := time.Since(start)
		dataLength := c.Writer.Size()
		if dataLength < 0 {
			dataLength = 0
		}

		entry := visitLog.WithFields(logrus.Fields{
			"statusCode": c.Writer.Status(),
			"latency":    fmt.Sprintf("%d us", int(math.Ceil(float64(stop.Nanoseconds())/1000.0))),
			"clientIP":   c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"dataLength": dataLength,
			"userAgent":  c.Request.UserAgent(),
		})

		switch status := c.Writer.Status(); {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		case status >= http.StatusInternalServerError:
			entry.Error()
		case status >= http.StatusBadRequest:
			entry.Warn()
		default:
			entry.Info()
		}
	}
}
