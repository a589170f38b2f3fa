package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// configABIJSON is the view-call surface used for cold-start hydration when
// a market's MarketInitialized event predates the tracked range.
const configABIJSON = `[
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
  {"type":"function","name":"collateralAsset","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
  {"type":"function","name":"priceOracle","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
  {"type":"function","name":"settlementOracle","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
  {"type":"function","name":"feeRate","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
  {"type":"function","name":"bondAmount","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
  {"type":"function","name":"bondCurrency","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
  {"type":"function","name":"minPriceTick","stateMutability":"view","inputs":[],"outputs":[{"type":"int24"}]},
  {"type":"function","name":"maxPriceTick","stateMutability":"view","inputs":[],"outputs":[{"type":"int24"}]},
  {"type":"function","name":"deployBlock","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]}
]`

var (
	configABIOnce sync.Once
	configABI     abi.ABI
	configABIErr  error
)

// ConfigABI returns the parsed market config call ABI.
func ConfigABI() (abi.ABI, error) {
	configABIOnce.Do(func() {
		configABI, configABIErr = abi.JSON(strings.NewReader(configABIJSON))
	})
	return configABI, configABIErr
}

// MarketConfig is the contract's static parameter set read via view calls.
type MarketConfig struct {
	Owner            string
	CollateralAsset  string
	PriceOracle      string
	SettlementOracle string
	FeeRate          string
	BondAmount       string
	BondCurrency     string
	MinPriceTick     int64
	MaxPriceTick     int64
	DeployBlock      uint64
}

// ReadMarketConfig hydrates a market's parameters directly from the
// contract.
func (c *Client) ReadMarketConfig(ctx context.Context, address string) (*MarketConfig, error) {
	cabi, err := ConfigABI()
	if err != nil {
		return nil, err
	}

	cfg := &MarketConfig{}

	readAddr := func(method string, dst *string) error {
		out, err := c.ReadContract(ctx, address, cabi, method)
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		a, ok := out[0].(common.Address)
		if !ok {
			return fmt.Errorf("%s: unexpected result type %T", method, out[0])
		}
		*dst = strings.ToLower(a.Hex())
		return nil
	}
	readBig := func(method string, dst *string) error {
		out, err := c.ReadContract(ctx, address, cabi, method)
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		n, ok := out[0].(*big.Int)
		if !ok {
			return fmt.Errorf("%s: unexpected result type %T", method, out[0])
		}
		*dst = n.String()
		return nil
	}
	readTick := func(method string, dst *int64) error {
		out, err := c.ReadContract(ctx, address, cabi, method)
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		n, ok := out[0].(*big.Int)
		if !ok {
			return fmt.Errorf("%s: unexpected result type %T", method, out[0])
		}
		*dst = n.Int64()
		return nil
	}

	if err := readAddr("owner", &cfg.Owner); err != nil {
		return nil, err
	}
	if err := readAddr("collateralAsset", &cfg.CollateralAsset); err != nil {
		return nil, err
	}
	if err := readAddr("priceOracle", &cfg.PriceOracle); err != nil {
		return nil, err
	}
	if err := readAddr("settlementOracle", &cfg.SettlementOracle); err != nil {
		return nil, err
	}
	if err := readBig("feeRate", &cfg.FeeRate); err != nil {
		return nil, err
	}
	if err := readBig("bondAmount", &cfg.BondAmount); err != nil {
		return nil, err
	}
	if err := readAddr("bondCurrency", &cfg.BondCurrency); err != nil {
		return nil, err
	}
	if err := readTick("minPriceTick", &cfg.MinPriceTick); err != nil {
		return nil, err
	}
	if err := readTick("maxPriceTick", &cfg.MaxPriceTick); err != nil {
		return nil, err
	}

	var deployBlock string
	if err := readBig("deployBlock", &deployBlock); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(deployBlock, 10)
	if ok {
		cfg.DeployBlock = n.Uint64()
	}

	return cfg, nil
}
