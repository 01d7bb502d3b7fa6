package verify

import (
	"net/http"
	"ocf/verifybot/internal"
	"ocf/verifybot/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Display renders the confirmation page. It can be loaded any number of
// times while the token is pending.
func Display(c *gin.Context, d *internal.Deps) {
	view, err := d.Verifier.Display(c.Request.Context(), c.Param("token"), c.GetString(middleware.IdentityKey))
	if err != nil {
		fail(c, d, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "verify.html", gin.H{
		"Service":      d.ServiceName,
		"Token":        view.Token,
		"DiscordName":  view.SubjectName,
		"ExternalName": view.ExternalIdentity,
		"SiteKey":      d.TurnstileSiteKey,
	})
}
