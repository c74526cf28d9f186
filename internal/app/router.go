package app

import (
	"training_backend/docs"
	"training_backend/internal/config"
	"training_backend/internal/middleware"
	"training_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret, a.services.auth))
	{
		a.registerUserRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
		public.POST("/auth/forgot-password", c.auth.ForgotPassword)
		public.POST("/auth/reset-password", c.auth.ResetPassword)

		// 证书公开验证
		public.GET("/public/certificates/:code", c.certificate.Verify)
	}
}

func (a *App) registerUserRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.POST("/auth/logout", c.auth.Logout)
	rg.GET("/auth/verify", c.auth.Verify)

	// 学习进度
	rg.GET("/progress", c.progress.GetProgress)
	rg.POST("/progress/mark-read", c.progress.MarkRead)
	rg.POST("/progress/rate", c.progress.RateContent)
	rg.GET("/progress/topics", c.progress.GetCompletedTopics)
	rg.GET("/progress/ratings", c.progress.GetRatings)
	rg.GET("/progress/completed-modules", c.progress.GetCompletedModules)

	// 考试
	rg.POST("/exam/submit", c.exam.Submit)
	rg.GET("/exam/attempts", c.exam.ListAttempts)
	rg.GET("/exam/attempts/:id/answers", c.exam.ListAttemptAnswers)

	// 证书
	rg.GET("/certificates", c.certificate.List)
	rg.POST("/certificates/resend", c.certificate.Resend)
	rg.GET("/certificates/:id/document", c.certificate.Document)
}
