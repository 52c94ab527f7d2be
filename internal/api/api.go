package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/extended-accounts/backend/internal/database"
	"github.com/pageza/extended-accounts/backend/internal/middleware"
	"github.com/pageza/extended-accounts/backend/internal/service"
)

// Deps are the services the HTTP surface is built from.
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Accounts    *service.AccountService
	Images      *service.ImageService
	Auth        *service.AuthService
	Mailer      service.Mailer
	FrontendURL string
	Logger      *zap.SugaredLogger
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", healthCheck(deps.DB))
	router.GET("/api/health", healthCheck(deps.DB))

	accountHandler := NewAccountHandler(deps.Accounts, deps.Images, deps.Auth, deps.Mailer, deps.FrontendURL, deps.Logger)
	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	mediaHandler := NewMediaHandler(deps.Images)

	var registrationLimiter, loginLimiter *middleware.RateLimiter
	if deps.Redis != nil {
		registrationLimiter = middleware.NewRegistrationRateLimiter(deps.Redis, deps.Logger)
		loginLimiter = middleware.NewLoginRateLimiter(deps.Redis, deps.Logger)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", loginLimiter.ByClientIP(), authHandler.Login)
		v1.GET("/media/:name", mediaHandler.Serve)

		accounts := v1.Group("/accounts")
		accounts.POST("", registrationLimiter.ByClientIP(), accountHandler.Register)
		accounts.GET("/confirm/:username/:token", accountHandler.Confirm)

		authed := accounts.Group("")
		authed.Use(middleware.AuthMiddleware(deps.Auth))
		{
			authed.GET("", accountHandler.List)
			authed.GET("/me", accountHandler.Me)
			authed.GET("/:username", accountHandler.Detail)

			owner := authed.Group("/:username")
			owner.Use(middleware.RequireOwner("username", deps.Accounts))
			{
				owner.PUT("", accountHandler.Update)
				owner.DELETE("", accountHandler.Delete)
				owner.DELETE("/image", accountHandler.DeleteImage)
			}
		}
	}
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := database.HealthCheck(c.Request.Context(), db); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}
