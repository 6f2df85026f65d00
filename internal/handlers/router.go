package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"coin-ledger/internal/config"
	"coin-ledger/internal/middleware"
	"coin-ledger/internal/services"
)

// NewRouter wires the backend routes the client ledger depends on under /api.
func NewRouter(cfg *config.Config, redisService *services.RedisService, jwtService *services.JWTService, hub *WebSocketHub) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	gameService := services.NewGameService(redisService, cfg.PayoutRatio)
	gameService.SetBroadcaster(hub)

	userHandler := NewUserHandler(redisService, jwtService)
	gameHandler := NewGameHandler(gameService)
	wsHandler := NewWebSocketHandler(redisService, hub)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.CORS())

	if !cfg.IsProduction() {
		router.POST("/auth/token", userHandler.IssueToken)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/users/profile", userHandler.GetProfile)
		protected.POST("/transactions/sync",
			middleware.RateLimitMiddleware(redisService, "sync", services.DefaultRateLimitSync, time.Minute),
			gameHandler.SyncTransactions,
		)
		protected.POST("/games/settle", gameHandler.Settle)
		protected.GET("/ws", wsHandler.HandleWebSocket)
	}

	return router
}
