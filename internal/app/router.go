package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"travelsync/internal/handler"
	"travelsync/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	AuthHandler     *handler.AuthHandler
	SyncHandler     *handler.SyncHandler
	ConflictHandler *handler.ConflictHandler
	TripHandler     *handler.TripHandler
	ExpenseHandler  *handler.ExpenseHandler
	TokenValidator  middleware.TokenValidator
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Login routes are the only unauthenticated surface.
		auth := v1.Group("/auth")
		{
			auth.POST("/otp/request", deps.AuthHandler.RequestOTP)
			auth.POST("/otp/verify", deps.AuthHandler.VerifyOTP)
		}

		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(deps.TokenValidator))
		{
			// Sync routes. Upload and resolution replays are answered
			// from the recorded manifest instead of reprocessing.
			sync := authed.Group("/sync")
			sync.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
			{
				sync.POST("", deps.SyncHandler.Sync)
				sync.POST("/force", deps.SyncHandler.ForceSync)
				sync.GET("/status", deps.SyncHandler.Status)
				sync.GET("/conflicts", deps.ConflictHandler.List)
				sync.GET("/conflicts/:id", deps.ConflictHandler.Get)
				sync.POST("/conflicts/:id/resolve", deps.ConflictHandler.Resolve)
			}

			// Trip routes.
			trips := authed.Group("/trips")
			{
				trips.POST("", deps.TripHandler.Create)
				trips.GET("", deps.TripHandler.List)
				trips.GET("/:id", deps.TripHandler.Get)
				trips.PUT("/:id", deps.TripHandler.Update)
				trips.DELETE("/:id", deps.TripHandler.Delete)
				trips.GET("/:id/locations", deps.TripHandler.Locations)
			}

			// Expense routes.
			expenses := authed.Group("/expenses")
			{
				expenses.POST("", deps.ExpenseHandler.Create)
				expenses.GET("", deps.ExpenseHandler.List)
				expenses.GET("/:id", deps.ExpenseHandler.Get)
				expenses.PUT("/:id", deps.ExpenseHandler.Update)
				expenses.DELETE("/:id", deps.ExpenseHandler.Delete)
			}
		}
	}

	return router
}
