package routes

import (
	"net/http"

	"deckparty/handlers"
	"deckparty/middleware"
	"deckparty/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	gameHandler *handlers.GameHandler,
	adminHandler *handlers.AdminHandler,
	sessions *services.SessionService,
	auth *services.AuthService,
	limiter *services.RateLimiter,
) {
	api := router.Group("/api")
	// Every public route feeds (and is guarded by) the probe limiter: 404s
	// count as brute-force signals and a locked-out IP is refused outright.
	api.Use(middleware.ProbeGuard(limiter))
	{
		api.POST("/games", middleware.RateLimit(limiter, services.ActionCreateGame), gameHandler.CreateGame)
		api.POST("/games/:code/join", middleware.RateLimit(limiter, services.ActionJoinGame), gameHandler.JoinGame)
		api.GET("/tags", adminHandler.ListTags)

		// Everything below acts on behalf of a seated player; the session
		// gate injects the validated (player, game) pair.
		game := api.Group("/games/:code")
		game.Use(middleware.SessionAuth(sessions))
		{
			game.GET("", gameHandler.GetGame)
			game.GET("/history", gameHandler.GetHistory)
			game.POST("/start", gameHandler.StartGame)
			game.POST("/submit", gameHandler.SubmitCards)
			game.POST("/judge", gameHandler.ForceJudging)
			game.POST("/winner", gameHandler.PickWinner)
			game.POST("/pause", gameHandler.SetPaused)
			game.POST("/skip-czar", gameHandler.VoteSkipCzar)
			game.POST("/remove", gameHandler.RemovePlayer)
			game.POST("/transfer-host", gameHandler.TransferHost)
			game.POST("/refresh-hand", gameHandler.RefreshHand)
			game.POST("/leave", gameHandler.LeaveGame)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/login", middleware.RateLimit(limiter, services.ActionAdminLogin), adminHandler.Login)

			protected := admin.Group("/")
			protected.Use(middleware.AdminAuth(auth))
			{
				protected.GET("/cards", adminHandler.ListCards)
				protected.POST("/cards", adminHandler.CreateCard)
				protected.PUT("/cards/:id", adminHandler.UpdateCard)
				protected.DELETE("/cards/:id", adminHandler.DeleteCard)
				protected.POST("/cards/import", adminHandler.ImportCards)

				protected.POST("/tags", adminHandler.CreateTag)
				protected.DELETE("/tags/:id", adminHandler.DeleteTag)

				protected.GET("/packs", adminHandler.ListPacks)
				protected.POST("/packs", adminHandler.CreatePack)
				protected.DELETE("/packs/:id", adminHandler.DeletePack)

				protected.GET("/games/stale", adminHandler.StaleGames)
				protected.DELETE("/games/stale", adminHandler.PurgeStaleGames)
			}
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
