package main

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/foodbridge/foodbridge-api/config"
	"github.com/foodbridge/foodbridge-api/controllers"
	"github.com/foodbridge/foodbridge-api/middleware"
	"github.com/foodbridge/foodbridge-api/models"
	"github.com/foodbridge/foodbridge-api/services"
)

func main() {
	// Basic logging
	log.Println("Starting FoodBridge API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(&models.User{}, &models.Donation{}, &models.Request{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Initialize S3-backed image storage for donation photos
	if cfg.AWSS3Bucket != "" {
		s3Service, err := services.InitS3Service()
		if err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}
		services.InitImageService(s3Service)
	} else {
		log.Println("AWS_S3_BUCKET not set, donation photos disabled")
	}

	// Initialize Gin router
	router := gin.Default()

	// The dashboard SPA calls from a different origin
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	authRequired := middleware.EnsureValidToken(cfg)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		// User profile routes
		v1.POST("/users", authRequired, controllers.CreateUser)
		v1.GET("/users/me", authRequired, controllers.GetMyProfile)
		v1.PUT("/users/me", authRequired, controllers.UpdateMyProfile)

		// Donation listing routes (public)
		v1.GET("/donations", controllers.ListDonations)
		v1.GET("/donations/nearby", controllers.ListNearbyDonations)
		v1.GET("/donations/mine", authRequired, controllers.ListMyDonations)
		v1.GET("/donations/:id", controllers.GetDonation)

		// Donation lifecycle routes
		v1.POST("/donations", authRequired, controllers.CreateDonation)
		v1.PUT("/donations/:id", authRequired, controllers.UpdateDonation)
		v1.PATCH("/donations/:id", authRequired, controllers.CompleteDonation)
		v1.DELETE("/donations/:id", authRequired, controllers.DeleteDonation)
		v1.POST("/donations/:id/image", authRequired, controllers.UploadDonationImage)

		// Pickup request routes
		v1.POST("/donations/:id/requests", authRequired, controllers.SubmitRequest)
		v1.PATCH("/donations/:id/requests/:requestId", authRequired, controllers.DecideRequest)
		v1.GET("/donors/me/requests", authRequired, controllers.ListDonorRequests)
		v1.GET("/recipients/me/requests", authRequired, controllers.ListRecipientRequests)
	}

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "FoodBridge API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
