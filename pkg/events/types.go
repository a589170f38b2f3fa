package events

import (
	"time"
)

// RawEvent is the canonical, origin-independent form of one decoded log.
// Both the live watcher and the backfill coordinator produce RawEvents and
// feed them through the same apply path. All big-integer arguments are
// decimal strings.
type RawEvent struct {
	ChainID     uint64
	Address     string
	Name        string
	BlockNumber uint64
	LogIndex    uint32
	TxHash      string
	Topics      []string
	Timestamp   time.Time
	Payload     Payload
}

// Payload is the closed set of decoded event argument variants. One struct
// per event kind keeps reducer dispatch exhaustive at compile time instead
// of stringly-typed arg maps.
type Payload interface {
	EventName() string
}

type MarketInitialized struct {
	Owner            string
	CollateralAsset  string
	PriceOracle      string
	SettlementOracle string
	FeeRate          string
	BondAmount       string
	BondCurrency     string
	MinPriceTick     int64
	MaxPriceTick     int64
}

type MarketUpdated struct {
	PriceOracle      string
	SettlementOracle string
	FeeRate          string
	BondAmount       string
	BondCurrency     string
	MinPriceTick     int64
	MaxPriceTick     int64
}

type PeriodCreated struct {
	PeriodID          uint64
	StartTime         int64
	EndTime           int64
	StartingSqrtPrice string
}

type PeriodSettled struct {
	PeriodID        uint64
	SettlementPrice string
}

type LiquidityPositionCreated struct {
	PeriodID         uint64
	PositionID       uint64
	Sender           string
	AddedAmount0     string
	AddedAmount1     string
	CollateralAmount string
	LowerTick        int64
	UpperTick        int64
}

type LiquidityPositionIncreased struct {
	PeriodID         uint64
	PositionID       uint64
	AddedAmount0     string
	AddedAmount1     string
	CollateralAmount string
}

type LiquidityPositionDecreased struct {
	PeriodID          uint64
	PositionID        uint64
	RemovedAmount0    string
	RemovedAmount1    string
	CollateralRemoved string
}

type LiquidityPositionClosed struct {
	PeriodID           uint64
	PositionID         uint64
	CollateralReturned string
}

// TraderPosition args carry absolute post-trade balances, not deltas. The
// reducer diffs them against the position's current totals.
type TraderPositionCreated struct {
	PeriodID           uint64
	PositionID         uint64
	Sender             string
	InitialPrice       string
	FinalPrice         string
	TradeRatio         string
	BaseTokenAmount    string
	QuoteTokenAmount   string
	BorrowedBaseToken  string
	BorrowedQuoteToken string
	CollateralAmount   string
}

type TraderPositionModified struct {
	PeriodID           uint64
	PositionID         uint64
	Sender             string
	InitialPrice       string
	FinalPrice         string
	TradeRatio         string
	BaseTokenAmount    string
	QuoteTokenAmount   string
	BorrowedBaseToken  string
	BorrowedQuoteToken string
	CollateralAmount   string
}

// PositionTransfer is the ownership NFT transfer; it only ever touches the
// position's owner field.
type PositionTransfer struct {
	From    string
	To      string
	TokenID uint64
}

// UnknownEvent is decodable against the ABI but has no reducer handler. It
// is stored as an Event and produces no mutation; the no-op is explicit, not
// a silent drop.
type UnknownEvent struct {
	Name string
}

func (MarketInitialized) EventName() string          { return "MarketInitialized" }
func (MarketUpdated) EventName() string              { return "MarketUpdated" }
func (PeriodCreated) EventName() string              { return "PeriodCreated" }
func (PeriodSettled) EventName() string              { return "PeriodSettled" }
func (LiquidityPositionCreated) EventName() string   { return "LiquidityPositionCreated" }
func (LiquidityPositionIncreased) EventName() string { return "LiquidityPositionIncreased" }
func (LiquidityPositionDecreased) EventName() string { return "LiquidityPositionDecreased" }
func (LiquidityPositionClosed) EventName() string    { return "LiquidityPositionClosed" }
func (TraderPositionCreated) EventName() string      { return "TraderPositionCreated" }
func (TraderPositionModified) EventName() string     { return "TraderPositionModified" }
func (PositionTransfer) EventName() string           { return "Transfer" }
func (u UnknownEvent) EventName() string             { return u.Name }
