package app

import (
	"ucode_backend/docs"
	"ucode_backend/internal/config"
	"ucode_backend/internal/middleware"
	"ucode_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerLearnerRoutes(authGroup, c)

		// 3. 课程目录管理，仅限员工
		staff := authGroup.Group("")
		staff.Use(middleware.StaffMiddleware())
		a.registerStaffRoutes(staff, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/signup", c.auth.Signup)
		public.POST("/login", c.auth.Login)
		public.POST("/google-auth", c.auth.GoogleAuth)
		public.POST("/token/refresh", c.auth.Refresh)

		public.GET("/courses", middleware.TryAuthMiddleware(cfg), c.course.ListCourses)
		public.GET("/verify-certificate/:id", c.certificate.VerifyCertificate)
	}
}

func (a *App) registerLearnerRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.POST("/logout", c.auth.Logout)

	// 用户相关
	rg.GET("/profile", c.user.GetProfile)
	rg.PUT("/profile/edit", c.user.UpdateProfile)
	rg.POST("/profile/image", c.user.UploadProfileImage)
	rg.GET("/statistics", c.user.GetStatistics)

	// 课程学习
	rg.GET("/courses/enrolled", c.course.EnrolledCourses)
	rg.GET("/courses/:id", c.course.GetCourse)
	rg.GET("/courses/:id/lessons", c.course.CourseLessons)
	rg.GET("/courses/:id/next-lesson/:serial", c.course.NextLesson)
	rg.GET("/courses/:id/certificate", c.certificate.DownloadCertificate)

	rg.GET("/lessons/:id", c.lesson.GetLesson)
	rg.POST("/lessons/:id/start", c.lesson.StartLesson)

	// 判分
	rg.POST("/task-check/:componentId", c.task.CheckTask)
	rg.GET("/coding-submissions/:id", c.task.GetSubmission)
}

func (a *App) registerStaffRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.POST("/courses", c.course.CreateCourse)
	rg.PUT("/courses/:id", c.course.UpdateCourse)
	rg.DELETE("/courses/:id", c.course.DeleteCourse)
	rg.POST("/courses/:id/banner", c.course.UploadBanner)
	rg.GET("/courses/:id/progress/export", c.course.ExportProgress)

	rg.POST("/lessons", c.lesson.SaveLesson)
	rg.DELETE("/lessons/:id", c.lesson.DeleteLesson)
}
