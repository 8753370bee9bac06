package main

import (
	"log"
	"math/rand"
	"time"

	"deckparty/config"
	"deckparty/handlers"
	"deckparty/middleware"
	"deckparty/models"
	"deckparty/routes"
	"deckparty/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.Card{},
		&models.Tag{},
		&models.Pack{},
		&models.AdminUser{},
		&models.Game{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	if err := authService.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal("Failed to seed admin account:", err)
	}
	contentService := services.NewContentService(db)
	gameStore := services.NewGameStore(db)
	deckService := services.NewDeckService(db)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	gameService := services.NewGameService(gameStore, deckService, cfg, rng)
	sessionService := services.NewSessionService(redisClient, cfg.SessionTTL)
	rateLimiter := services.NewRateLimiter(redisClient, cfg)

	// Initialize handlers
	gameHandler := handlers.NewGameHandler(gameService, sessionService)
	adminHandler := handlers.NewAdminHandler(authService, contentService, gameStore)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, gameHandler, adminHandler, sessionService, authService, rateLimiter)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
