package router

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/handlers"
	"zkaccount-backend/internal/metrics"
	"zkaccount-backend/internal/middleware"
)

// Handlers everything the router mounts
type Handlers struct {
	Health    *handlers.HealthHandler
	Accounts  *handlers.AccountHandler
	Transfers *handlers.TransferHandler
	Queries   *handlers.QueryHandler
	WebSocket *handlers.WebSocketHandler
}

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept, " + middleware.TOTPHeader
)

// corsMiddleware CORS middleware
// Empty origin list allows all origins.
func corsMiddleware(cfg config.CORSConfig, logger *logrus.Logger) gin.HandlerFunc {
	allowAll := len(cfg.AllowedOrigins) == 0
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[o] = true
		}
	}
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		case origin != "":
			logger.WithFields(logrus.Fields{
				"request_origin": origin,
				"path":           c.Request.URL.Path,
				"remote_addr":    c.ClientIP(),
			}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
		}

		c.Header("Access-Control-Allow-Methods", allowMethods)
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		if cfg.AllowCredentials && !allowAll {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Next()
	}
}

// requestMetrics records request duration per matched route
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// SetupRouter builds the HTTP engine
func SetupRouter(cfg *config.Config, h Handlers, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.CORS, logger))
	r.Use(requestMetrics())

	if len(cfg.Server.MetricsAllowedIPs) > 0 {
		logger.WithField("allowed_ips", cfg.Server.MetricsAllowedIPs).Info("Metrics IP whitelist configured")
	}
	localhostOnly := middleware.NewLocalhostOnly(logger, cfg.Server.MetricsAllowedIPs)
	auth := middleware.NewAuthMiddleware(cfg.Auth, logger)

	// ============ Check ============
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// ============ Health Check ============
	r.GET("/health", h.Health.Health)
	r.GET("/api/health", h.Health.Health)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", localhostOnly.Restrict(), gin.WrapH(promhttp.Handler()))

	// ============ API Routes ============
	v1 := r.Group("/api/v1")
	v1.Use(auth.RequireAuth())
	{
		accounts := v1.Group("/accounts")
		accounts.POST("", h.Accounts.CreateAccount)
		accounts.GET("/predict", h.Accounts.PredictAccount)
		accounts.GET("/:owner", h.Accounts.CheckAccount)

		transfers := v1.Group("/transfers", auth.RequireTOTP())
		transfers.POST("/native", h.Transfers.SendNative)
		transfers.POST("/token", h.Transfers.SendToken)

		v1.GET("/recipients/resolve", h.Queries.ResolveRecipient)
		v1.GET("/balances/:address", h.Queries.GetBalances)
		v1.GET("/transactions/:address", h.Queries.ListTransactions)

		v1.GET("/ws/settlements", h.WebSocket.HandleWebSocket)
	}

	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"message":    "Endpoint not found",
				"path":       path,
				"suggestion": "Check /api/v1 endpoints for available APIs",
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{
			"message": "API endpoint not found",
			"path":    path,
		})
	})

	return r
}
