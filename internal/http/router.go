package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig HTTP layer settings.
type RouterConfig struct {
	AllowOrigins []string
	Debug        bool
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg RouterConfig, h *Handler, logger *zap.Logger) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	corsCfg := cors.Config{
		AllowMethods:  []string{"POST", "GET", "PUT", "DELETE"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length"},
		ExposeHeaders: []string{"Content-Type", "Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	h.addSampleRoutes(v1)
	h.addAnalyticsRoutes(v1)
	h.addGoalRoutes(v1)
	h.addInsightRoutes(v1)
	h.addCareRoutes(v1)
	h.addStatusRoutes(v1)
	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("HTTP request failed", fields...)
			return
		}
		logger.Debug("HTTP request", fields...)
	}
}
