// Package verify serves the two pages of the verification link
package verify

import (
	"net/http"
	"ocf/verifybot/internal"
	"ocf/verifybot/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func fail(c *gin.Context, d *internal.Deps, err error) {
	requestID := c.GetString("requestID")
	status := apperr.Status(err)

	if status >= http.StatusInternalServerError {
		zap.L().Error("Verification request failed",
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.Error(err))
	} else {
		zap.L().Debug("Verification request rejected",
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.Error(err))
	}

	c.Header("Cache-Control", "no-store")
	c.HTML(status, "error.html", gin.H{
		"Service":   d.ServiceName,
		"Message":   apperr.Message(err),
		"RequestID": requestID,
	})
}
