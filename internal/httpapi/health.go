package httpapi

import (
	"context"
	"net/http"
	"time"

	"agri-ivr/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Check is one readiness dependency.
type Check func(ctx context.Context) error

type Health struct {
	Checks  map[string]Check
	Timeout time.Duration
}

func (h Health) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready runs every check; any failure makes the instance unready.
func (h Health) Ready(c *gin.Context) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			logger.FromGin(c).Warn("readiness check failed", "check", name, "err", err)
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	c.JSON(status, gin.H{"checks": results})
}
