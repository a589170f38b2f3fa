// Package notify pushes applied events to realtime consumers over Redis
// Pub/Sub. Publishing is best-effort: the projection never fails because a
// notification did.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gridline-markets/gridx/pkg/events"
	"github.com/gridline-markets/gridx/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps the Redis connection used for event fan-out.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// NewClient connects using environment configuration:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: "0")
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db))

	return &Client{client: rdb, logger: logger}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Channel returns the Pub/Sub channel name for one market's event feed.
func Channel(chainID uint64, address string) string {
	return fmt.Sprintf("market:%d:%s:events", chainID, address)
}

// EventMessage is the wire form sent on a market's channel.
type EventMessage struct {
	ChainID     uint64    `json:"chain_id"`
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	BlockNumber uint64    `json:"block_number"`
	LogIndex    uint32    `json:"log_index"`
	TxHash      string    `json:"tx_hash"`
	Timestamp   time.Time `json:"timestamp"`
	Args        string    `json:"args"`
}

// Publish sends an applied event on its market channel. Implements
// projection.Notifier.
func (c *Client) Publish(ctx context.Context, ev *events.RawEvent) error {
	msg := EventMessage{
		ChainID:     ev.ChainID,
		Address:     ev.Address,
		Name:        ev.Name,
		BlockNumber: ev.BlockNumber,
		LogIndex:    ev.LogIndex,
		TxHash:      ev.TxHash,
		Timestamp:   ev.Timestamp,
		Args:        events.ArgsJSON(ev.Payload),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return c.client.Publish(ctx, Channel(ev.ChainID, ev.Address), payload).Err()
}

// Subscribe subscribes to one or more market channels. The caller closes the
// returned PubSub when done.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.client.Subscribe(ctx, channels...)
}

// PSubscribe subscribes to channel patterns, e.g. "market:1:*:events".
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	c.logger.Debug("Subscribing to Redis patterns", zap.Strings("patterns", patterns))
	return c.client.PSubscribe(ctx, patterns...)
}

// Health checks if Redis is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
