package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the dashboard origin in production
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action  string `json:"action"`  // "subscribe" or "unsubscribe"
	ChainID string `json:"chainId"` // chain id, or "*" for all chains
	Address string `json:"address"` // market address, or "*" for all markets
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "event", "subscribed", "unsubscribed", "error", "ping"
	Payload interface{} `json:"payload"` // event-specific data
}

// clientSubscriptions tracks which market channels a client wants.
type clientSubscriptions struct {
	mu      sync.RWMutex
	markets map[string]bool // "<chainId>:<address>" -> subscribed
}

// NewClientSubscriptions creates a new clientSubscriptions tracker.
// Exported for testing.
func NewClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{markets: make(map[string]bool)}
}

func subKey(chainID, address string) string {
	return chainID + ":" + address
}

// Subscribe adds a market to the subscription list.
func (cs *clientSubscriptions) Subscribe(chainID, address string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.markets[subKey(chainID, address)] = true
}

// Unsubscribe removes a market from the subscription list.
func (cs *clientSubscriptions) Unsubscribe(chainID, address string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.markets, subKey(chainID, address))
}

// IsSubscribed checks if a market is subscribed. Wildcards match per part.
func (cs *clientSubscriptions) IsSubscribed(chainID, address string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for _, key := range []string{
		subKey(chainID, address),
		subKey(chainID, "*"),
		subKey("*", address),
		subKey("*", "*"),
	} {
		if cs.markets[key] {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades the connection and streams applied market events.
//
// Protocol:
// Client sends: {"action": "subscribe", "chainId": "1", "address": "0xabc..."}
// Client sends: {"action": "subscribe", "chainId": "*", "address": "*"}
// Client sends: {"action": "unsubscribe", "chainId": "1", "address": "0xabc..."}
//
// Server sends:
// - {"type": "event", "payload": {...}}
// - {"type": "subscribed"/"unsubscribed", "payload": {"chainId": ..., "address": ...}}
// - {"type": "ping", "payload": {"timestamp": 1234567890}}
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.NotifyClient == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.App.Logger.Error("Failed to close WebSocket connection", zap.Error(err))
		}
	}()

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := NewClientSubscriptions()
	send := make(chan ServerMessage, 256)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.recoverWS(cancel, r, "redis subscriber")
		c.forwardRedisEvents(ctx, send, subs)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.recoverWS(cancel, r, "ping ticker")
		c.sendPings(ctx, send)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.recoverWS(cancel, r, "message writer")
		c.writeMessages(conn, send)
	}()

	// Blocks until the connection closes.
	c.readClientMessages(ctx, conn, cancel, subs, send)

	close(send)
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (c *Controller) recoverWS(cancel context.CancelFunc, r *http.Request, what string) {
	if rec := recover(); rec != nil {
		c.App.Logger.Error("Panic in WebSocket goroutine",
			zap.String("goroutine", what),
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
			zap.String("remote_addr", r.RemoteAddr))
		cancel()
	}
}

// forwardRedisEvents subscribes to all market channels and forwards events
// matching the client's subscriptions. Reconnects with backoff when the
// Redis subscription drops.
func (c *Controller) forwardRedisEvents(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
	)
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.pumpRedis(ctx, send, subs); err != nil && ctx.Err() == nil {
			c.App.Logger.Warn("Redis subscription lost, will retry",
				zap.Error(err),
				zap.Duration("backoff", backoff))
		}
		if ctx.Err() != nil {
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Controller) pumpRedis(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) error {
	pubsub := c.App.NotifyClient.PSubscribe(ctx, "market:*:*:events")
	defer func() {
		if err := pubsub.Close(); err != nil {
			c.App.Logger.Error("Error closing Redis subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()
	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("failed to confirm Redis subscription: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var payload struct {
				ChainID uint64 `json:"chain_id"`
				Address string `json:"address"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				continue
			}
			if !subs.IsSubscribed(fmt.Sprintf("%d", payload.ChainID), payload.Address) {
				continue
			}

			var full map[string]interface{}
			_ = json.Unmarshal([]byte(msg.Payload), &full)

			select {
			case send <- ServerMessage{Type: "event", Payload: full}:
			case <-ctx.Done():
				return nil
			default:
				// Slow client, drop rather than block the pump.
			}
		}
	}
}

func (c *Controller) sendPings(ctx context.Context, send chan<- ServerMessage) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case send <- ServerMessage{Type: "ping", Payload: map[string]interface{}{"timestamp": time.Now().Unix()}}:
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- ServerMessage) {
	defer cancel()
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Action {
		case "subscribe":
			subs.Subscribe(msg.ChainID, msg.Address)
			c.trySend(ctx, send, ServerMessage{
				Type:    "subscribed",
				Payload: map[string]string{"chainId": msg.ChainID, "address": msg.Address},
			})
		case "unsubscribe":
			subs.Unsubscribe(msg.ChainID, msg.Address)
			c.trySend(ctx, send, ServerMessage{
				Type:    "unsubscribed",
				Payload: map[string]string{"chainId": msg.ChainID, "address": msg.Address},
			})
		default:
			c.trySend(ctx, send, ServerMessage{
				Type:    "error",
				Payload: map[string]string{"message": "unknown action: " + msg.Action},
			})
		}
	}
}

func (c *Controller) trySend(ctx context.Context, send chan<- ServerMessage, msg ServerMessage) {
	select {
	case send <- msg:
	case <-ctx.Done():
	default:
	}
}
