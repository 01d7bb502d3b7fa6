package stats

import (
	"net/http"
	"ocf/verifybot/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stats returns how many tokens are pending and completed
func Stats(c *gin.Context, d *internal.Deps) {
	requestID := c.GetString("requestID")

	s, err := d.Store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Database unavailable",
			"requestID": requestID,
		})

		zap.L().Error("Failed to count tokens", zap.String("request_id", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending":        s.Pending,
		"completed":      s.Completed,
		"notify_pending": d.Notify.Pending(),
	})
}
