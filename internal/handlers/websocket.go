package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"coin-ledger/internal/middleware"
	"coin-ledger/internal/models"
	"coin-ledger/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 10 * time.Second

type WebSocketHandler struct {
	redisService *services.RedisService
	hub          *WebSocketHub
}

// WebSocketHub tracks every open connection per user. One user may have
// several devices connected.
type WebSocketHub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *Client) write(msg models.RealtimeMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(msg)
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients: make(map[int64]map[*Client]struct{}),
	}
}

func NewWebSocketHandler(redisService *services.RedisService, hub *WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{
		redisService: redisService,
		hub:          hub,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("failed to upgrade to websocket", "err", err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	h.hub.register(client)
	defer func() {
		h.hub.unregister(client)
		conn.Close()
	}()

	h.sendBalance(c, client)

	for {
		var msg models.RealtimeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "user_id", userID, "err", err)
			}
			break
		}

		if msg.Type == "ping" {
			client.write(models.RealtimeMessage{
				Type: "pong",
				Data: gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

func (h *WebSocketHandler) sendBalance(c *gin.Context, client *Client) {
	wallet, err := h.redisService.GetWallet(c.Request.Context(), client.UserID)
	if err != nil {
		slog.Warn("failed to get wallet for websocket", "user_id", client.UserID, "err", err)
		return
	}

	client.write(models.RealtimeMessage{
		Type: models.EventBalanceUpdated,
		Data: models.BalanceUpdatedEvent{Coins: wallet.Coins},
	})
}

func (hub *WebSocketHub) register(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.clients[client.UserID] == nil {
		hub.clients[client.UserID] = make(map[*Client]struct{})
	}
	hub.clients[client.UserID][client] = struct{}{}
	slog.Debug("websocket client registered", "user_id", client.UserID)
}

func (hub *WebSocketHub) unregister(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if conns, ok := hub.clients[client.UserID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(hub.clients, client.UserID)
		}
		slog.Debug("websocket client unregistered", "user_id", client.UserID)
	}
}

// Connected returns the number of open connections of a user.
func (hub *WebSocketHub) Connected(userID int64) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients[userID])
}

// BroadcastBalance implements services.Broadcaster.
func (hub *WebSocketHub) BroadcastBalance(userID int64, coins int64) {
	hub.mu.RLock()
	clients := make([]*Client, 0, len(hub.clients[userID]))
	for client := range hub.clients[userID] {
		clients = append(clients, client)
	}
	hub.mu.RUnlock()

	msg := models.RealtimeMessage{
		Type:   models.EventBalanceUpdated,
		UserID: userID,
		Data:   models.BalanceUpdatedEvent{Coins: coins},
	}

	for _, client := range clients {
		if err := client.write(msg); err != nil {
			slog.Warn("failed to push balance", "user_id", userID, "err", err)
		}
	}
}
