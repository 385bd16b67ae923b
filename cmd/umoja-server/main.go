package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rukundo/umoja/pkg/umoja/admin"
	"github.com/rukundo/umoja/pkg/umoja/attendance"
	"github.com/rukundo/umoja/pkg/umoja/auth"
	"github.com/rukundo/umoja/pkg/umoja/database"
	"github.com/rukundo/umoja/pkg/umoja/members"
	"github.com/rukundo/umoja/pkg/umoja/models"
	"github.com/rukundo/umoja/pkg/umoja/notifications"
	"github.com/rukundo/umoja/pkg/umoja/properties"
	"github.com/rukundo/umoja/pkg/umoja/regions"
	"github.com/rukundo/umoja/pkg/umoja/smallgroups"
	"github.com/rukundo/umoja/pkg/umoja/universities"
	"go.uber.org/zap"
)

// @title Umoja API
// @version 1.0
// @description Multi-tenant campus ministry management: regions, universities, small groups, attendance, and notifications.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Get database path from environment or use default
	dbPath := os.Getenv("UMOJA_DB_PATH")
	if dbPath == "" {
		dbPath = "umoja.db"
	}

	// Connect to database
	if err := database.Connect(dbPath); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Run auto-migrations
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	logger.Info("Database migrations completed")

	// Create default superadmin user if none exists
	if err := ensureSuperAdminExists(); err != nil {
		logger.Fatal("Failed to ensure superadmin user exists", zap.Error(err))
	}

	// Notification cascade runs off the request path on a task queue
	notifier := notifications.NewNotifier(database.GetDB(), logger)
	queue := notifications.NewQueue(notifier, logger)
	defer queue.Close()

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "umoja",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(database.GetDB())
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Everything below requires a valid JWT and a resolved scope
		protected := api.Group("", auth.AuthMiddleware(), auth.ScopeMiddleware(database.GetDB()))

		regionsHandler := regions.NewHandler(database.GetDB())
		regionsHandler.RegisterRoutes(protected.Group("/regions"))

		universitiesHandler := universities.NewHandler(database.GetDB())
		universitiesHandler.RegisterRoutes(protected.Group("/universities"))

		smallGroupsHandler := smallgroups.NewHandler(database.GetDB())
		smallGroupsHandler.RegisterRoutes(protected.Group("/small_groups"))
		smallGroupsHandler.RegisterGraduateRoutes(protected.Group("/graduate_groups"))

		membersHandler := members.NewHandler(database.GetDB())
		membersHandler.RegisterRoutes(protected.Group("/members"))

		propertiesHandler := properties.NewHandler(database.GetDB())
		propertiesHandler.RegisterRoutes(protected.Group("/properties"))

		attendanceHandler := attendance.NewHandler(database.GetDB(), queue)
		attendanceHandler.RegisterRoutes(protected.Group("/events"))

		notificationsHandler := notifications.NewHandler(database.GetDB(), queue)
		notificationsHandler.RegisterRoutes(protected.Group("/notifications"))

		// Admin routes (superadmin only)
		adminHandler := admin.NewHandler(database.GetDB())
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.ScopeMiddleware(database.GetDB()), auth.RequireSuperAdmin())
		adminHandler.RegisterRoutes(adminGroup)
	}

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("Starting Umoja server", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// ensureSuperAdminExists creates a default superadmin user if no superadmin
// role assignment exists in the database.
func ensureSuperAdminExists() error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.UserRole{}).Where("level = ?", models.ScopeSuperAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil // Superadmin already exists
	}

	hashedPassword, err := auth.HashPassword("changeme")
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        "admin@umoja.local",
		Name:         "Admin",
		PasswordHash: hashedPassword,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	role := models.UserRole{
		UserID: adminUser.ID,
		Level:  models.ScopeSuperAdmin,
	}
	if err := db.Create(&role).Error; err != nil {
		return err
	}

	log.Printf("Created default superadmin user: admin@umoja.local (password: changeme)")
	return nil
}
