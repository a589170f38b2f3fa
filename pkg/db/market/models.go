package market

import (
	"time"
)

// TxType classifies a derived ledger entry. One Transaction is produced per
// position-affecting event; market/period lifecycle events produce none.
type TxType string

const (
	TxAddLiquidity    TxType = "ADD_LIQUIDITY"
	TxRemoveLiquidity TxType = "REMOVE_LIQUIDITY"
	TxLong            TxType = "LONG"
	TxShort           TxType = "SHORT"
	TxSettle          TxType = "SETTLE"
)

// IsValid reports whether t is one of the known transaction types.
func (t TxType) IsValid() bool {
	switch t {
	case TxAddLiquidity, TxRemoveLiquidity, TxLong, TxShort, TxSettle:
		return true
	}
	return false
}

// Market is a tracked contract instance. Identity (chain_id, address) is
// immutable after creation; parameters are updated in place by
// MarketUpdated events or cold-start contract reads.
type Market struct {
	ChainID          uint64    `json:"chain_id"`
	Address          string    `json:"address"`
	Owner            string    `json:"owner"`
	CollateralAsset  string    `json:"collateral_asset"`
	DeployBlock      uint64    `json:"deploy_block"`
	FeeRate          string    `json:"fee_rate"`
	BondAmount       string    `json:"bond_amount"`
	BondCurrency     string    `json:"bond_currency"`
	MinPriceTick     int64     `json:"min_price_tick"`
	MaxPriceTick     int64     `json:"max_price_tick"`
	PriceOracle      string    `json:"price_oracle"`
	SettlementOracle string    `json:"settlement_oracle"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Period is a bounded trading window within a market. Never deleted;
// settlement flips Settled and records the settlement price.
type Period struct {
	ChainID           uint64 `json:"chain_id"`
	Address           string `json:"address"`
	PeriodID          uint64 `json:"period_id"`
	StartTime         int64  `json:"start_time"`
	EndTime           int64  `json:"end_time"`
	StartingSqrtPrice string `json:"starting_sqrt_price"`
	Settled           bool   `json:"settled"`
	SettlementPrice   string `json:"settlement_price"`
}

// Event is the durably stored record of one on-chain log.
// (address, block_number, log_index) is the at-most-once key; rows are
// immutable after insert.
type Event struct {
	ChainID     uint64    `json:"chain_id"`
	Address     string    `json:"address"`
	BlockNumber uint64    `json:"block_number"`
	LogIndex    uint32    `json:"log_index"`
	Name        string    `json:"name"`
	Args        string    `json:"args"` // normalized argument map, JSON
	TxHash      string    `json:"tx_hash"`
	Topics      []string  `json:"topics"`
	Timestamp   time.Time `json:"timestamp"`
}

// Transaction is the derived ledger entry for a position-affecting event,
// one-to-one with its source event and never mutated after creation.
// All deltas are signed big integers as decimal strings.
type Transaction struct {
	ChainID         uint64    `json:"chain_id"`
	Address         string    `json:"address"`
	BlockNumber     uint64    `json:"block_number"`
	LogIndex        uint32    `json:"log_index"`
	PeriodID        uint64    `json:"period_id"`
	PositionID      uint64    `json:"position_id"`
	Type            TxType    `json:"type"`
	BaseTokenDelta  string    `json:"base_token_delta"`
	QuoteTokenDelta string    `json:"quote_token_delta"`
	CollateralDelta string    `json:"collateral_delta"`
	TradeRatio      string    `json:"trade_ratio,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Position accumulates a trader's or LP's balances within a period. Running
// totals only ever move by previous ± delta, in (block_number, log_index)
// order.
type Position struct {
	ChainID            uint64    `json:"chain_id"`
	Address            string    `json:"address"`
	PeriodID           uint64    `json:"period_id"`
	PositionID         uint64    `json:"position_id"`
	Owner              string    `json:"owner"`
	IsLP               bool      `json:"is_lp"`
	BaseToken          string    `json:"base_token"`
	QuoteToken         string    `json:"quote_token"`
	BorrowedBaseToken  string    `json:"borrowed_base_token"`
	BorrowedQuoteToken string    `json:"borrowed_quote_token"`
	Collateral         string    `json:"collateral"`
	LowPriceTick       *int64    `json:"low_price_tick,omitempty"`
	HighPriceTick      *int64    `json:"high_price_tick,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// MarketPrice is one realized-price sample per trade transaction,
// append-only, ordered by timestamp.
type MarketPrice struct {
	ChainID     uint64    `json:"chain_id"`
	Address     string    `json:"address"`
	PeriodID    uint64    `json:"period_id"`
	BlockNumber uint64    `json:"block_number"`
	LogIndex    uint32    `json:"log_index"`
	Price       string    `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
}

// ResourcePrice is raw per-block usage data for a market's underlying
// resource: total fee paid and units used in that block.
type ResourcePrice struct {
	ChainID     uint64 `json:"chain_id"`
	Address     string `json:"address"`
	BlockNumber uint64 `json:"block_number"`
	FeePaid     string `json:"fee_paid"`
	Used        string `json:"used"`
	Timestamp   int64  `json:"timestamp"`
}

// IndexPrice is the derived rolling fee/usage average for a period at a
// timestamp, upserted keyed by (period, timestamp).
type IndexPrice struct {
	ChainID   uint64 `json:"chain_id"`
	Address   string `json:"address"`
	PeriodID  uint64 `json:"period_id"`
	Timestamp int64  `json:"timestamp"`
	Price     string `json:"price"`
}
