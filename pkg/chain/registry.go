package chain

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gridline-markets/gridx/pkg/utils"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Registry holds one client per chain id. It is constructed once at startup
// and passed by reference to watchers and backfill activities; there is no
// module-level client state.
type Registry struct {
	clients *xsync.Map[uint64, *Client]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: xsync.NewMap[uint64, *Client]()}
}

// Add registers a client for its chain id, replacing any previous one.
func (r *Registry) Add(c *Client) {
	r.clients.Store(c.ChainID, c)
}

// Get returns the client for a chain id.
func (r *Registry) Get(chainID uint64) (*Client, bool) {
	return r.clients.Load(chainID)
}

// Close tears down every registered client.
func (r *Registry) Close() {
	r.clients.Range(func(_ uint64, c *Client) bool {
		c.Close()
		return true
	})
}

// NewRegistryFromEnv dials every endpoint in CHAIN_RPC_URLS, formatted as
// "<chainID>=<url>[,<chainID>=<url>...]".
func NewRegistryFromEnv(ctx context.Context, logger *zap.Logger) (*Registry, error) {
	spec := utils.Env("CHAIN_RPC_URLS", "")
	if spec == "" {
		return nil, fmt.Errorf("CHAIN_RPC_URLS environment variable is required")
	}

	registry := NewRegistry()
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed CHAIN_RPC_URLS entry %q", entry)
		}

		chainID, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed chain id in CHAIN_RPC_URLS entry %q: %w", entry, err)
		}

		client, err := Dial(ctx, chainID, parts[1], logger)
		if err != nil {
			return nil, err
		}
		registry.Add(client)
	}

	return registry, nil
}
