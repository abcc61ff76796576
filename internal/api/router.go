// internal/api/router.go
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Corphon/SocialGenius/internal/config"
	"github.com/Corphon/SocialGenius/internal/utils"
)

// Router bundles the engine with the pieces the server must shut down
type Router struct {
	Engine     *gin.Engine
	Handler    *Handler
	WebSockets *WebSocketManager
	Limiter    *RateLimiter
}

// SetupRouter wires middleware and routes around h
func SetupRouter(cfg *config.Config, h *Handler) *Router {
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger())
	r.Use(RequestMetrics(utils.NewGenerationMetrics(h.Metrics)))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	limiter := NewRateLimiter(100, time.Minute)
	ws := NewWebSocketManager(cfg.AllowedOrigins)

	r.GET("/health", h.Health)

	// WebSocket progress of a reel session
	r.GET("/ws/reels/:id", h.ReelWebSocket(ws))

	api := r.Group("/api")
	api.Use(RateLimitByIP(limiter, h.Response))
	{
		api.GET("/content-types", h.GetContentTypes)
		api.GET("/metrics", h.GetMetrics)
		api.GET("/ws/status", h.GetWebSocketStatus(ws))

		api.POST("/carousel", h.CreateCarousel)
		api.POST("/posts", h.CreateImagePost)

		// ===============================
		// reel sessions
		// ===============================
		reels := api.Group("/reels")
		{
			reels.POST("", h.CreateReel)
			reels.GET("", h.ListReels)
			reels.GET("/:id", h.GetReel)
			reels.DELETE("/:id", h.DeleteReel)

			reels.POST("/:id/script", h.GenerateReelScript)
			reels.PUT("/:id/script", h.SelectReelScript)
			reels.GET("/:id/script/html", h.GetReelScriptHTML)

			reels.POST("/:id/videos", h.GenerateReelVideos)
			reels.GET("/:id/progress", h.SubscribeReelProgress)
			reels.DELETE("/:id/scenes", h.ClearReelScenes)
			reels.GET("/:id/scenes/:index/video", h.DownloadSceneVideo)
		}
	}

	return &Router{Engine: r, Handler: h, WebSockets: ws, Limiter: limiter}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}

	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	return c
}
