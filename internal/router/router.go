package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"folio/internal/handler"
	"folio/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware. A nil
// validator leaves the API unauthenticated.
func Setup(
	log *zap.Logger,
	allowedOrigins []string,
	validator middleware.TokenValidator,
	refineH *handler.RefineHandler,
	documentH *handler.DocumentHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(validator))

	v1.POST("/pages/refine", refineH.Refine)

	documents := v1.Group("/documents")
	documents.POST("", documentH.Create)
	documents.GET("/:id", documentH.GetByID)
	documents.GET("/:id/elements", documentH.ListElements)

	return r
}
