package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gridline-markets/gridx/pkg/retry"
	"go.uber.org/zap"
)

// Client wraps one chain connection. All methods retry transient RPC
// failures with backoff; decode-level errors never originate here.
type Client struct {
	ChainID  uint64
	Endpoint string

	eth      *ethclient.Client
	logger   *zap.Logger
	retryCfg retry.Config
}

// Dial connects to the chain RPC endpoint and verifies the reported chain id
// matches the expected one.
func Dial(ctx context.Context, chainID uint64, endpoint string, logger *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d at %s: %w", chainID, endpoint, err)
	}

	reported, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain id of %s: %w", endpoint, err)
	}
	if reported.Uint64() != chainID {
		eth.Close()
		return nil, fmt.Errorf("endpoint %s reports chain %d, expected %d", endpoint, reported.Uint64(), chainID)
	}

	logger.Info("Connected to chain RPC",
		zap.Uint64("chain_id", chainID),
		zap.String("endpoint", endpoint))

	return &Client{
		ChainID:  chainID,
		Endpoint: endpoint,
		eth:      eth,
		logger:   logger.With(zap.Uint64("chain_id", chainID)),
		retryCfg: retry.DefaultConfig(),
	}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Block is the subset of a chain block header the projection needs:
// ordering, time, and the resource usage inputs for index prices.
type Block struct {
	Number   uint64
	Time     time.Time
	GasUsed  uint64
	BaseFee  *big.Int
}

// GetBlock fetches one block header. nil number means chain head.
func (c *Client) GetBlock(ctx context.Context, number *uint64) (*Block, error) {
	var header *types.Header
	var arg *big.Int
	if number != nil {
		arg = new(big.Int).SetUint64(*number)
	}

	err := retry.WithBackoff(ctx, c.retryCfg, c.logger, "get_block", func() error {
		h, err := c.eth.HeaderByNumber(ctx, arg)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	return &Block{
		Number:  header.Number.Uint64(),
		Time:    time.Unix(int64(header.Time), 0).UTC(),
		GasUsed: header.GasUsed,
		BaseFee: baseFee,
	}, nil
}

// HeadBlock returns the current chain head number.
func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	var head uint64
	err := retry.WithBackoff(ctx, c.retryCfg, c.logger, "head_block", func() error {
		n, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = n
		return nil
	})
	return head, err
}

// GetLogs fetches logs emitted by address in [fromBlock, toBlock]. The node
// returns them in (block, log index) order, which the caller relies on.
func (c *Client) GetLogs(ctx context.Context, address string, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(address)},
	}

	var logs []types.Log
	err := retry.WithBackoff(ctx, c.retryCfg, c.logger, "get_logs", func() error {
		out, err := c.eth.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		logs = out
		return nil
	})
	return logs, err
}

// ReadContract calls a read-only contract function and returns the unpacked
// results. Used for cold-start hydration of market parameters when the
// MarketInitialized event predates tracking.
func (c *Client) ReadContract(ctx context.Context, address string, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := common.HexToAddress(address)
	msg := ethereum.CallMsg{To: &to, Data: data}

	var raw []byte
	err = retry.WithBackoff(ctx, c.retryCfg, c.logger, "read_contract", func() error {
		out, callErr := c.eth.CallContract(ctx, msg, nil)
		if callErr != nil {
			return callErr
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	results, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s result: %w", method, err)
	}
	return results, nil
}

// WatchLogs tails logs for address from the current head, delivering them on
// the returned channel in (block, log index) order. Uses an eth subscription
// on websocket endpoints and falls back to head polling elsewhere; either
// way the consumer sees one ordered stream. The channel closes when ctx is
// cancelled.
func (c *Client) WatchLogs(ctx context.Context, address string, pollInterval time.Duration) (<-chan types.Log, error) {
	out := make(chan types.Log, 256)

	if strings.HasPrefix(c.Endpoint, "ws://") || strings.HasPrefix(c.Endpoint, "wss://") {
		if err := c.watchSubscribed(ctx, address, out); err == nil {
			return out, nil
		}
		c.logger.Warn("Log subscription unavailable, falling back to polling",
			zap.String("address", address))
	}

	go func() {
		defer close(out)
		c.watchPolled(ctx, address, pollInterval, out)
	}()
	return out, nil
}

func (c *Client) watchSubscribed(ctx context.Context, address string, out chan<- types.Log) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress(address)},
	}
	ch := make(chan types.Log, 256)
	sub, err := c.eth.SubscribeFilterLogs(ctx, query, ch)
	if err != nil {
		return err
	}

	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				c.logger.Warn("Log subscription dropped, switching to polling",
					zap.String("address", address), zap.Error(err))
				c.watchPolled(ctx, address, 12*time.Second, out)
				return
			case lg := <-ch:
				if lg.Removed {
					continue
				}
				select {
				case out <- lg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

// watchPolled never closes out; the spawning goroutine owns the channel.
func (c *Client) watchPolled(ctx context.Context, address string, interval time.Duration, out chan<- types.Log) {
	if interval <= 0 {
		interval = 12 * time.Second
	}

	last, err := c.HeadBlock(ctx)
	if err != nil {
		c.logger.Error("Watch aborted, cannot resolve chain head", zap.Error(err))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		head, err := c.HeadBlock(ctx)
		if err != nil {
			c.logger.Warn("Head poll failed", zap.Error(err))
			continue
		}
		if head <= last {
			continue
		}

		logs, err := c.GetLogs(ctx, address, last+1, head)
		if err != nil {
			c.logger.Warn("Log poll failed",
				zap.Uint64("from", last+1), zap.Uint64("to", head), zap.Error(err))
			continue
		}

		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			select {
			case out <- lg:
			case <-ctx.Done():
				return
			}
		}
		last = head
	}
}
