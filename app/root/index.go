package root

import (
	"net/http"
	"ocf/verifybot/internal"

	"github.com/gin-gonic/gin"
)

func Index(c *gin.Context, d *internal.Deps) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Service": d.ServiceName,
	})
}
