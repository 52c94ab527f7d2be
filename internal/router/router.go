package router

import (
	"github.com/gin-gonic/gin"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/api"
	"github.com/pageza/extended-accounts/backend/internal/middleware"
)

// SetupRouter configures the application routes
func SetupRouter(deps api.Deps, origins ...string) *gin.Engine {
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.ErrorHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(origins...))
	router.MaxMultipartMemory = 16 << 20

	api.RegisterRoutes(router, deps)
	return router
}
