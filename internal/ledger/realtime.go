package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"coin-ledger/internal/models"
)

// BalanceHandler receives authoritative balances pushed by the server.
type BalanceHandler func(ctx context.Context, coins int64) error

// RealtimeListener keeps a websocket open to the backend and forwards
// balance_updated events.
type RealtimeListener struct {
	url     string
	token   func() string
	handler BalanceHandler
	dialer  *websocket.Dialer
	logger  *slog.Logger

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

type realtimeFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewRealtimeListener(url string, token func() string, handler BalanceHandler, logger *slog.Logger) *RealtimeListener {
	return &RealtimeListener{
		url:        url,
		token:      token,
		handler:    handler,
		dialer:     websocket.DefaultDialer,
		logger:     logger,
		MinBackoff: time.Second,
		MaxBackoff: 30 * time.Second,
	}
}

// Run reconnects with capped exponential backoff until ctx is done.
func (l *RealtimeListener) Run(ctx context.Context) error {
	backoff := l.MinBackoff

	for {
		connected, err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = l.MinBackoff
		}
		l.logger.WarnContext(ctx, "realtime connection lost", "err", err, "retry_in", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > l.MaxBackoff {
			backoff = l.MaxBackoff
		}
	}
}

// listen reports whether the dial succeeded along with the error that ended the session.
func (l *RealtimeListener) listen(ctx context.Context) (bool, error) {
	token := l.token()
	if token == "" {
		return false, errors.New("no auth token")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		return false, fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	l.logger.InfoContext(ctx, "realtime connected", "url", l.url)

	for {
		var frame realtimeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return true, err
		}
		l.dispatch(ctx, frame)
	}
}

func (l *RealtimeListener) dispatch(ctx context.Context, frame realtimeFrame) {
	switch frame.Type {
	case models.EventBalanceUpdated:
		var event struct {
			Coins *int64 `json:"coins"`
		}
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			l.logger.WarnContext(ctx, "malformed balance_updated event", "err", err)
			return
		}
		if event.Coins == nil {
			l.logger.WarnContext(ctx, "ignoring balance_updated without coins")
			return
		}
		coins := *event.Coins
		if coins < 0 {
			l.logger.WarnContext(ctx, "ignoring negative pushed balance", "coins", coins)
			return
		}
		if err := l.handler(ctx, coins); err != nil {
			l.logger.ErrorContext(ctx, "failed to apply pushed balance", "coins", coins, "err", err)
		}
	default:
		l.logger.DebugContext(ctx, "ignoring realtime event", "type", frame.Type)
	}
}
