package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"coin-ledger/internal/middleware"
	"coin-ledger/internal/models"
	"coin-ledger/internal/services"
)

type GameHandler struct {
	gameService *services.GameService
}

func NewGameHandler(gameService *services.GameService) *GameHandler {
	return &GameHandler{
		gameService: gameService,
	}
}

func (h *GameHandler) SyncTransactions(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	var req models.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.gameService.ApplySync(c.Request.Context(), userID, req.Transactions)
	if err != nil {
		if errors.Is(err, models.ErrInvalidEntry) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid transaction",
				"details": err.Error(),
			})
			return
		}
		slog.Error("failed to apply sync", "user_id", userID, "count", len(req.Transactions), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync transactions"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *GameHandler) Settle(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	var req models.GameSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.gameService.Settle(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, services.ErrAlreadySettled) {
			c.JSON(http.StatusConflict, gin.H{"error": "Game already settled"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to settle game",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
