package router

import (
	"github.com/facturalink/dte-backend/config"
	"github.com/facturalink/dte-backend/internal/app/controller"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authController         *controller.AuthController
	documentController     *controller.DocumentController
	transmissionController *controller.TransmissionController
	complianceController   *controller.ComplianceController
	onboardingController   *controller.OnboardingController
	recurrenceController   *controller.RecurrenceController
	reportController       *controller.ReportController
	eventStreamController  *controller.EventStreamController
	authMiddleware         *middleware.AuthMiddleware
	config                 *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	documentController *controller.DocumentController,
	transmissionController *controller.TransmissionController,
	complianceController *controller.ComplianceController,
	onboardingController *controller.OnboardingController,
	recurrenceController *controller.RecurrenceController,
	reportController *controller.ReportController,
	eventStreamController *controller.EventStreamController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:         authController,
		documentController:     documentController,
		transmissionController: transmissionController,
		complianceController:   complianceController,
		onboardingController:   onboardingController,
		recurrenceController:   recurrenceController,
		reportController:       reportController,
		eventStreamController:  eventStreamController,
		authMiddleware:         authMiddleware,
		config:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "FacturaLink DTE API is running",
		})
	})

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/refresh", r.authController.Refresh)
			auth.POST("/logout", r.authMiddleware.Authenticate(), r.authController.Logout)
		}

		v1.PUT("/credentials",
			r.authMiddleware.Authenticate(),
			r.authController.SetAuthorityCredentials,
		)

		documents := v1.Group("/documents", r.authMiddleware.Authenticate())
		{
			documents.POST("", r.documentController.Issue)
			documents.GET("", r.documentController.ListDocuments)
			documents.GET("/:id", r.documentController.GetDocument)
			documents.POST("/:id/sign", r.documentController.Sign)
			documents.POST("/:id/resubmit", r.documentController.Resubmit)
		}

		transmissions := v1.Group("/transmissions", r.authMiddleware.Authenticate())
		{
			transmissions.POST("", r.transmissionController.Enqueue)
			transmissions.GET("/:id", r.transmissionController.GetJob)
			transmissions.GET("/:id/attempts", r.transmissionController.ListAttempts)
		}

		compliance := v1.Group("/compliance", r.authMiddleware.Authenticate())
		{
			compliance.GET("/progress", r.complianceController.GetProgress)
			compliance.POST("/results", r.complianceController.RecordTestResult)
		}

		onboarding := v1.Group("/onboarding", r.authMiddleware.Authenticate())
		{
			onboarding.POST("/start", r.onboardingController.Start)
			onboarding.GET("", r.onboardingController.GetState)
			onboarding.POST("/document-types", r.onboardingController.SelectDocumentTypes)
			onboarding.POST("/steps/complete", r.onboardingController.CompleteStep)
		}

		recurrences := v1.Group("/recurrences", r.authMiddleware.Authenticate())
		{
			recurrences.POST("", r.recurrenceController.CreateTemplate)
			recurrences.GET("", r.recurrenceController.ListTemplates)
			recurrences.DELETE("/:id", r.recurrenceController.DeactivateTemplate)
		}

		reports := v1.Group("/reports", r.authMiddleware.Authenticate())
		{
			reports.GET("/document-book", r.reportController.MonthlyDocumentBook)
		}

		v1.GET("/events/stream",
			r.authMiddleware.Authenticate(),
			r.eventStreamController.Stream,
		)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
