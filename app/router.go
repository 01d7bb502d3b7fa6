package app

import (
	"context"
	"net/http"
	"net/url"
	"ocf/verifybot/app/root"
	"ocf/verifybot/app/stats"
	"ocf/verifybot/app/verify"
	"ocf/verifybot/internal"
	"ocf/verifybot/pkg/middleware"
	"ocf/verifybot/web"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewRouter builds the engine. Background work started for it, like the
// rate limiter cleanup, stops when ctx is done.
func NewRouter(ctx context.Context, d *internal.Deps) *gin.Engine {
	router := gin.New()

	if origins := corsOrigins(); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "HEAD", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "TurnstileToken"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		zap.L().Warn("No CORS origins configured, cross-origin requests won't be allowed")
	}

	router.Use(
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD" || c.Request.URL.Path == "/metrics"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString(middleware.IdentityKey); v != "" {
					fields = append(fields, zap.String("identity", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.SetHTMLTemplate(web.Templates())

	rateLimit := viper.GetInt("security.rate_limit")
	rateLimiter := middleware.RateLimiterMiddleware(ctx, middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
	})

	identity := middleware.NewIdentityMiddleware(
		viper.GetString("identity.header"),
		viper.GetString("identity.jwt_secret"),
	)

	turnstile := middleware.NewTurnstileMiddleware(middleware.TurnstileConfig{
		Enabled:   viper.GetBool("cloudflare.turnstile.enabled"),
		Secret:    viper.GetString("cloudflare.turnstile.secret_token"),
		VerifyURL: viper.GetString("cloudflare.turnstile.verify_url"),
	})

	// GET / 			-> Landing page
	router.GET("/", func(c *gin.Context) { root.Index(c, d) })

	// GET /metrics			-> Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	main := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", root.Heartbeat)
		main.GET("/heartbeat", root.Heartbeat)

		// GET /api/stats		-> Pending and completed token counts
		main.GET("/stats", cacheFor(30), func(c *gin.Context) { stats.Stats(c, d) })
	}

	v := router.Group("/verify", rateLimiter, middleware.BodySizeLimiter(viper.GetInt64("security.max_body")), identity)
	{
		// GET /verify/:token		-> Shows who is about to be linked
		v.GET("/:token", func(c *gin.Context) { verify.Display(c, d) })

		// POST /verify/:token		-> Grants the role and consumes the token
		v.POST("/:token", turnstile, func(c *gin.Context) { verify.Confirm(c, d) })
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not found",
			"requestID": c.GetString("requestID"),
		})
	})

	return router
}

// corsOrigins falls back to the origin of host.base_url
func corsOrigins() []string {
	if origins := viper.GetStringSlice("host.cors_origins"); len(origins) > 0 {
		return origins
	}

	u, err := url.Parse(viper.GetString("host.base_url"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}

	return []string{u.Scheme + "://" + u.Host}
}

var cacheStore = persist.NewMemoryStore(time.Minute)

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(cacheStore, time.Second*time.Duration(sec))
}
