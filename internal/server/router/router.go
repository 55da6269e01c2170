package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/metrics"
	"github.com/mamadbah2/farmchain/internal/server/handlers"
)

// Options configures the engine.
type Options struct {
	AllowedOrigins []string
	// Metrics may be nil; /metrics is then not served.
	Metrics *metrics.Metrics
}

// New wires the Gin engine with required routes and middlewares.
func New(batchesH *handlers.BatchHandler, notificationsH *handlers.NotificationHandler, opts Options, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(opts.Metrics.Middleware())
	r.Use(corsMiddleware(opts.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := r.Group("/api/v1")

	b := api.Group("/batches")
	b.POST("", batchesH.Create)
	b.GET("/:batchId", batchesH.Get)
	b.POST("/:batchId/crops", batchesH.AddCrop)
	b.GET("/:batchId/crops", batchesH.Crops)
	b.GET("/:batchId/trace", batchesH.Trace)
	b.GET("/:batchId/listings", batchesH.Listings)
	b.POST("/:batchId/approve", batchesH.Approve)
	b.POST("/:batchId/reject", batchesH.Reject)
	b.POST("/:batchId/submit", batchesH.Submit)
	b.PUT("/:batchId/status", batchesH.UpdateStatus)
	b.PUT("/:batchId/quality", batchesH.UpdateQuality)
	b.POST("/:batchId/split", batchesH.Split)
	b.POST("/:batchId/merge", batchesH.Merge)

	api.GET("/pending-batches", batchesH.Pending)
	api.GET("/farmers/:farmerId/batches", batchesH.ListByFarmer)
	api.GET("/distributors/:distributorId/batches", batchesH.Approved)

	api.GET("/users/:userId/notifications", notificationsH.List)
	api.GET("/users/:userId/notifications/unread-count", notificationsH.UnreadCount)
	api.PUT("/users/:userId/notifications/read-all", notificationsH.MarkAllRead)
	api.PUT("/notifications/:notificationId/read", notificationsH.MarkRead)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
