package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"spendsnap/internal/handlers"
	"spendsnap/internal/middleware"
	"spendsnap/internal/services"
)

// newRouter builds the API's routes on db.
func newRouter(db *gorm.DB, extractor services.ExtractionServicer, events services.EventPublisher, maxImageBytes int64) *gin.Engine {
	// Initialize services
	userService := services.NewUserService(db)
	expenseService := services.NewExpenseService(db)
	auditService := services.NewAuditService(db)
	exportService := services.NewExportService()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	expenseHandler := handlers.NewExpenseHandler(expenseService, auditService, events)
	scanHandler := handlers.NewScanHandler(extractor, expenseService, exportService, userService, auditService, maxImageBytes)
	healthHandler := handlers.NewHealthHandler(db)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS())
	router.NoRoute(middleware.NoRoute)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	api.GET("/health", healthHandler.Health)

	// Public routes
	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/auth/profile", authHandler.GetProfile)

	expenses := protected.Group("/expenses")
	expenses.GET("", expenseHandler.ListExpenses)
	expenses.POST("", expenseHandler.CreateExpense)
	expenses.GET("/categories", expenseHandler.ListCategories)
	expenses.GET("/export", scanHandler.ExportExpenses)
	expenses.POST("/extract-from-image", scanHandler.ExtractFromImage)
	expenses.GET("/:id", expenseHandler.GetExpense)
	expenses.PUT("/:id", expenseHandler.UpdateExpense)
	expenses.DELETE("/:id", expenseHandler.DeleteExpense)

	return router
}
