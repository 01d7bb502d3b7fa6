package verify

import (
	"net/http"
	"ocf/verifybot/internal"
	"ocf/verifybot/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Confirm(c *gin.Context, d *internal.Deps) {
	requestID := c.GetString("requestID")

	res, err := d.Verifier.Confirm(c.Request.Context(), c.Param("token"), c.GetString(middleware.IdentityKey))
	if err != nil {
		fail(c, d, err)
		return
	}

	if !res.Owned {
		zap.L().Debug("Confirmation lost the race, showing success anyway", zap.String("request_id", requestID))
	}

	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "success.html", gin.H{
		"Service": d.ServiceName,
	})
}
