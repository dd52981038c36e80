package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ecm-agenda-api/pkg/jobs"
)

// RootMessage is the banner served at "/".
const RootMessage = "¡API funcionando! Endpoints: /agenda, /availability"

type pinger interface {
	Ping(ctx context.Context) error
}

type queueStats interface {
	Stats() jobs.Stats
}

// SystemHandler serves the banner and probe endpoints.
type SystemHandler struct {
	cache  pinger
	queue  queueStats
	logger *zap.Logger
}

// NewSystemHandler constructs a system handler. cache and queue may be nil.
func NewSystemHandler(cache pinger, queue queueStats, logger *zap.Logger) *SystemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemHandler{cache: cache, queue: queue, logger: logger}
}

// Root returns the banner.
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": RootMessage})
}

// Health responds with a generic OK payload for liveness probes.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready checks the cache connection and reports queue state.
func (h *SystemHandler) Ready(c *gin.Context) {
	body := gin.H{"status": "ready"}
	status := http.StatusOK

	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("readiness cache ping failed", zap.Error(err))
			body["status"] = "degraded"
			body["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["cache"] = "ok"
		}
	}
	if h.queue != nil {
		body["queue"] = h.queue.Stats()
	}
	c.JSON(status, body)
}
