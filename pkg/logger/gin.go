package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ctxKeyLogger    = "logger"
)

// probePaths are polled by load balancers and prometheus. Successful hits
// are logged at debug so they do not drown out call traffic.
var probePaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// Middleware returns a Gin middleware that injects request_id and logs request summaries.
// Attributes added by handlers through Annotate appear on the summary line.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)
		c.Set(ctxKeyLogger, l.With("request_id", rid))

		c.Next()

		reqLogger := FromGin(c)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		switch {
		case len(c.Errors) > 0:
			reqLogger.Error("request", append(attrs, "errors", c.Errors.String())...)
		case isProbe(path) && status < 400:
			reqLogger.Debug("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

func isProbe(path string) bool {
	_, ok := probePaths[path]
	return ok
}

// Annotate adds attributes to the request-scoped logger and returns it.
// Voice webhooks use it to tag every line of a turn with call_id and dialect.
func Annotate(c *gin.Context, args ...any) *slog.Logger {
	l := FromGin(c).With(args...)
	c.Set(ctxKeyLogger, l)
	return l
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
