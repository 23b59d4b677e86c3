package router

import (
	"context"
	"net/http"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/api/handler"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", healthHandler(deps))

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// GET /api/v1/queue - Live pipeline state
		v1.GET("/queue", jobHandler.GetQueue)

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List job history with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)
		}
	}

	return r
}

func healthHandler(deps *handler.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		database := "disabled"
		status := http.StatusOK

		if deps.Database != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			defer cancel()

			database = "up"
			if err := deps.Database.HealthCheck(ctx); err != nil {
				database = "down"
				status = http.StatusServiceUnavailable
			}
		}

		health := "healthy"
		if status != http.StatusOK {
			health = "degraded"
		}

		c.JSON(status, gin.H{
			"status":   health,
			"service":  deps.ServiceName,
			"database": database,
		})
	}
}
