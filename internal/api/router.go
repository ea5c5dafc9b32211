package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/service"
)

const (
	identityKey  = "identity"
	requestIDKey = "request_id"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, db Pinger, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Handlers
	commentHandler := NewCommentHandler(services, log)
	userHandler := NewUserHandler(services, log)
	dataHandler := NewDataHandler(services, cfg, log)

	// Health check
	router.GET("/health", healthCheck(db))
	router.GET("/metrics", metricsHandler(services, log))

	api := router.Group("/api")
	api.Use(identityMiddleware(services.Policy, log))
	{
		api.GET("/comment", commentHandler.List)
		api.POST("/comment", commentHandler.Create)
		api.PUT("/comment/:id", commentHandler.Update)
		api.DELETE("/comment/:id", commentHandler.Delete)

		api.POST("/user", userHandler.Register)
		api.PUT("/user", userHandler.UpdateProfile)
		api.GET("/user", userHandler.List)

		api.POST("/token", userHandler.Login)
		api.GET("/token", userHandler.Profile)
		api.DELETE("/token", userHandler.Logout)
		api.PUT("/token/:user_id", userHandler.SetType)

		api.POST("/verification", userHandler.Verify)

		api.GET("/db", dataHandler.Export)
		api.POST("/db", dataHandler.CreateImport)
		api.DELETE("/db", dataHandler.DeleteTable)
		api.GET("/db/jobs/:job_id", dataHandler.GetImportStatus)
	}

	return router
}

// healthCheck returns the health status
func healthCheck(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := contextWithTimeout(c, 2*time.Second)
		defer cancel()

		status, database := "healthy", "up"
		code := http.StatusOK
		if err := db.HealthCheck(ctx); err != nil {
			status, database = "unhealthy", "down"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"database":  database,
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "threaded-comments-api",
		})
	}
}

// metricsHandler returns comment, account and limiter metrics
func metricsHandler(services *service.Services, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := services.Stats.Snapshot(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Msg("Metrics unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics unavailable"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"database": gin.H{
				"comments": stats.Comments,
				"waiting":  stats.Waiting,
				"spam":     stats.Spam,
				"users":    stats.Users,
				"counters": stats.Counters,
			},
			"limiter": gin.H{
				"tracked_keys": stats.LimiterKeys,
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Str("path", c.Request.URL.Path).Msg("Panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests and tags them with a request id
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", clientIP(c)).
			Str("request_id", requestID).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// identityMiddleware resolves the bearer token into the caller identity.
// Bad tokens fall back to anonymous; only a failing lookup aborts.
func identityMiddleware(policy *service.Policy, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := policy.Authorize(c.Request.Context(), bearerToken(c))
		if err != nil {
			fail(c, log, err)
			c.Abort()
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) service.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(service.Identity); ok {
			return identity
		}
	}
	return service.Anonymous
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// clientIP takes the first X-Forwarded-For hop, then X-Real-IP, then the peer address
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// contextWithTimeout creates a context with timeout for handlers
func contextWithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), timeout)
}
