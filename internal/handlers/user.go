package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"coin-ledger/internal/middleware"
	"coin-ledger/internal/models"
	"coin-ledger/internal/services"
)

type UserHandler struct {
	redisService *services.RedisService
	jwtService   *services.JWTService
}

func NewUserHandler(redisService *services.RedisService, jwtService *services.JWTService) *UserHandler {
	return &UserHandler{
		redisService: redisService,
		jwtService:   jwtService,
	}
}

// IssueToken is the development login: it trusts the posted user id.
func (h *UserHandler) IssueToken(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	user := &models.User{ID: req.UserID, Username: req.Username}
	if err := h.redisService.StoreUser(c.Request.Context(), user); err != nil {
		slog.Error("failed to store user", "user_id", req.UserID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store user"})
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(req.UserID, req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	})
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)
	ctx := c.Request.Context()

	user, err := h.redisService.GetUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get user",
			"details": err.Error(),
		})
		return
	}

	wallet, err := h.redisService.GetWallet(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get wallet",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.ProfileResponse{
		ID:       userID,
		Username: user.Username,
		Coins:    wallet.Coins,
	})
}
