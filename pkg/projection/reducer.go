package projection

import (
	"context"
	"fmt"

	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/events"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// tradeRatioScale is the fixed-point scale of the contract's tradeRatio arg.
const tradeRatioScale = 18

// Reducer folds one normalized event into the derived entities. It must be
// called with a transaction-carrying context (see Applier); every mutation
// for one event commits or rolls back as a unit.
//
// Events for a single market must arrive in (blockNumber, logIndex)
// ascending order: position totals are previous ± delta, so out-of-order
// application corrupts them.
type Reducer struct {
	store  market.Store
	logger *zap.Logger
}

// NewReducer returns a reducer bound to a store.
func NewReducer(store market.Store, logger *zap.Logger) *Reducer {
	return &Reducer{store: store, logger: logger}
}

// Reduce dispatches on the payload variant. Market/period lifecycle events
// mutate their entity and produce no Transaction; position-affecting events
// produce exactly one Transaction and fold it into the referenced Position.
func (r *Reducer) Reduce(ctx context.Context, ev *events.RawEvent) error {
	switch p := ev.Payload.(type) {
	case events.MarketInitialized:
		return r.marketInitialized(ctx, ev, p)
	case events.MarketUpdated:
		return r.marketUpdated(ctx, ev, p)
	case events.PeriodCreated:
		return r.periodCreated(ctx, ev, p)
	case events.PeriodSettled:
		return r.periodSettled(ctx, ev, p)
	case events.LiquidityPositionCreated:
		return r.liquidityCreated(ctx, ev, p)
	case events.LiquidityPositionIncreased:
		return r.liquidityIncreased(ctx, ev, p)
	case events.LiquidityPositionDecreased:
		return r.liquidityDecreased(ctx, ev, p)
	case events.LiquidityPositionClosed:
		return r.liquidityClosed(ctx, ev, p)
	case events.TraderPositionCreated:
		return r.traderChanged(ctx, ev, traderArgs(p), true)
	case events.TraderPositionModified:
		return r.traderChanged(ctx, ev, traderArgs(p), false)
	case events.PositionTransfer:
		return r.transfer(ctx, ev, p)
	case events.UnknownEvent:
		// Stored as an Event, no derived mutation. Explicit branch so new
		// event kinds fail loudly in tests rather than vanishing.
		r.logger.Debug("No handler for event",
			zap.String("event", p.Name),
			zap.Uint64("block", ev.BlockNumber))
		return nil
	default:
		return fmt.Errorf("unhandled payload type %T", ev.Payload)
	}
}

func (r *Reducer) marketInitialized(ctx context.Context, ev *events.RawEvent, p events.MarketInitialized) error {
	return r.store.UpsertMarket(ctx, &market.Market{
		ChainID:          ev.ChainID,
		Address:          ev.Address,
		Owner:            p.Owner,
		CollateralAsset:  p.CollateralAsset,
		DeployBlock:      ev.BlockNumber,
		FeeRate:          p.FeeRate,
		BondAmount:       p.BondAmount,
		BondCurrency:     p.BondCurrency,
		MinPriceTick:     p.MinPriceTick,
		MaxPriceTick:     p.MaxPriceTick,
		PriceOracle:      p.PriceOracle,
		SettlementOracle: p.SettlementOracle,
	})
}

func (r *Reducer) marketUpdated(ctx context.Context, ev *events.RawEvent, p events.MarketUpdated) error {
	m, err := r.store.GetMarket(ctx, ev.Address)
	if err != nil {
		return err
	}

	m.FeeRate = p.FeeRate
	m.BondAmount = p.BondAmount
	m.BondCurrency = p.BondCurrency
	m.MinPriceTick = p.MinPriceTick
	m.MaxPriceTick = p.MaxPriceTick
	m.PriceOracle = p.PriceOracle
	m.SettlementOracle = p.SettlementOracle

	return r.store.UpsertMarket(ctx, m)
}

func (r *Reducer) periodCreated(ctx context.Context, ev *events.RawEvent, p events.PeriodCreated) error {
	return r.store.UpsertPeriod(ctx, &market.Period{
		ChainID:           ev.ChainID,
		Address:           ev.Address,
		PeriodID:          p.PeriodID,
		StartTime:         p.StartTime,
		EndTime:           p.EndTime,
		StartingSqrtPrice: p.StartingSqrtPrice,
	})
}

func (r *Reducer) periodSettled(ctx context.Context, ev *events.RawEvent, p events.PeriodSettled) error {
	period, err := r.store.GetPeriod(ctx, ev.Address, p.PeriodID)
	if err != nil {
		return err
	}

	period.Settled = true
	period.SettlementPrice = p.SettlementPrice

	return r.store.UpsertPeriod(ctx, period)
}

func (r *Reducer) liquidityCreated(ctx context.Context, ev *events.RawEvent, p events.LiquidityPositionCreated) error {
	pos, err := r.store.GetPositionForUpdate(ctx, ev.Address, p.PeriodID, p.PositionID)
	if err != nil {
		if !market.IsNotFound(err) {
			return err
		}
		pos = newPosition(ev, p.PeriodID, p.PositionID)
	}
	pos.Owner = p.Sender
	pos.IsLP = true
	lower, upper := p.LowerTick, p.UpperTick
	pos.LowPriceTick = &lower
	pos.HighPriceTick = &upper

	tx := &market.Transaction{
		ChainID:         ev.ChainID,
		Address:         ev.Address,
		BlockNumber:     ev.BlockNumber,
		LogIndex:        ev.LogIndex,
		PeriodID:        p.PeriodID,
		PositionID:      p.PositionID,
		Type:            market.TxAddLiquidity,
		BaseTokenDelta:  p.AddedAmount0,
		QuoteTokenDelta: p.AddedAmount1,
		CollateralDelta: p.CollateralAmount,
		Timestamp:       ev.Timestamp,
	}

	return r.commitTransaction(ctx, ev, pos, tx)
}

func (r *Reducer) liquidityIncreased(ctx context.Context, ev *events.RawEvent, p events.LiquidityPositionIncreased) error {
	pos, err := r.store.GetPositionForUpdate(ctx, ev.Address, p.PeriodID, p.PositionID)
	if err != nil {
		return err
	}

	tx := &market.Transaction{
		ChainID:         ev.ChainID,
		Address:         ev.Address,
		BlockNumber:     ev.BlockNumber,
		LogIndex:        ev.LogIndex,
		PeriodID:        p.PeriodID,
		PositionID:      p.PositionID,
		Type:            market.TxAddLiquidity,
		BaseTokenDelta:  p.AddedAmount0,
		QuoteTokenDelta: p.AddedAmount1,
		CollateralDelta: p.CollateralAmount,
		Timestamp:       ev.Timestamp,
	}

	return r.commitTransaction(ctx, ev, pos, tx)
}

func (r *Reducer) liquidityDecreased(ctx context.Context, ev *events.RawEvent, p events.LiquidityPositionDecreased) error {
	pos, err := r.store.GetPositionForUpdate(ctx, ev.Address, p.PeriodID, p.PositionID)
	if err != nil {
		return err
	}

	// Event args carry removed magnitudes, the ledger entry negates them.
	base, err := NegDec(p.RemovedAmount0)
	if err != nil {
		return fmt.Errorf("removedAmount0: %w", err)
	}
	quote, err := NegDec(p.RemovedAmount1)
	if err != nil {
		return fmt.Errorf("removedAmount1: %w", err)
	}
	collateral, err := NegDec(p.CollateralRemoved)
	if err != nil {
		return fmt.Errorf("collateralRemoved: %w", err)
	}

	tx := &market.Transaction{
		ChainID:         ev.ChainID,
		Address:         ev.Address,
		BlockNumber:     ev.BlockNumber,
		LogIndex:        ev.LogIndex,
		PeriodID:        p.PeriodID,
		PositionID:      p.PositionID,
		Type:            market.TxRemoveLiquidity,
		BaseTokenDelta:  base,
		QuoteTokenDelta: quote,
		CollateralDelta: collateral,
		Timestamp:       ev.Timestamp,
	}

	return r.commitTransaction(ctx, ev, pos, tx)
}

// liquidityClosed is a full exit: the collateral delta is the negation of
// the position's entire current collateral, and the token totals return to
// zero. This is the one producer of SETTLE ledger entries.
func (r *Reducer) liquidityClosed(ctx context.Context, ev *events.RawEvent, p events.LiquidityPositionClosed) error {
	pos, err := r.store.GetPositionForUpdate(ctx, ev.Address, p.PeriodID, p.PositionID)
	if err != nil {
		return err
	}

	base, err := NegDec(pos.BaseToken)
	if err != nil {
		return fmt.Errorf("position base token: %w", err)
	}
	quote, err := NegDec(pos.QuoteToken)
	if err != nil {
		return fmt.Errorf("position quote token: %w", err)
	}
	collateral, err := NegDec(pos.Collateral)
	if err != nil {
		return fmt.Errorf("position collateral: %w", err)
	}

	tx := &market.Transaction{
		ChainID:         ev.ChainID,
		Address:         ev.Address,
		BlockNumber:     ev.BlockNumber,
		LogIndex:        ev.LogIndex,
		PeriodID:        p.PeriodID,
		PositionID:      p.PositionID,
		Type:            market.TxSettle,
		BaseTokenDelta:  base,
		QuoteTokenDelta: quote,
		CollateralDelta: collateral,
		Timestamp:       ev.Timestamp,
	}

	return r.commitTransaction(ctx, ev, pos, tx)
}

// trader is the shared argument shape of TraderPositionCreated/Modified.
type trader struct {
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

func traderArgs(p events.Payload) trader {
	switch x := p.(type) {
	case events.TraderPositionCreated:
		return trader(x)
	case events.TraderPositionModified:
		return trader(x)
	}
	return trader{}
}

// traderChanged handles both trade events. The args are absolute post-trade
// balances; deltas are newCumulativeAmount − previousCumulativeAmount, so
// the position's current totals are read before mutation. LONG when
// finalPrice > initialPrice.
func (r *Reducer) traderChanged(ctx context.Context, ev *events.RawEvent, p trader, create bool) error {
	pos, err := r.store.GetPositionForUpdate(ctx, ev.Address, p.PeriodID, p.PositionID)
	if err != nil {
		if !create || !market.IsNotFound(err) {
			return err
		}
		pos = newPosition(ev, p.PeriodID, p.PositionID)
		pos.Owner = p.Sender
	}

	baseDelta, err := SubDec(p.BaseTokenAmount, pos.BaseToken)
	if err != nil {
		return fmt.Errorf("baseTokenAmount: %w", err)
	}
	quoteDelta, err := SubDec(p.QuoteTokenAmount, pos.QuoteToken)
	if err != nil {
		return fmt.Errorf("quoteTokenAmount: %w", err)
	}
	collateralDelta, err := SubDec(p.CollateralAmount, pos.Collateral)
	if err != nil {
		return fmt.Errorf("collateralAmount: %w", err)
	}

	cmp, err := CmpDec(p.FinalPrice, p.InitialPrice)
	if err != nil {
		return fmt.Errorf("trade prices: %w", err)
	}
	txType := market.TxShort
	if cmp > 0 {
		txType = market.TxLong
	}

	tx := &market.Transaction{
		ChainID:         ev.ChainID,
		Address:         ev.Address,
		BlockNumber:     ev.BlockNumber,
		LogIndex:        ev.LogIndex,
		PeriodID:        p.PeriodID,
		PositionID:      p.PositionID,
		Type:            txType,
		BaseTokenDelta:  baseDelta,
		QuoteTokenDelta: quoteDelta,
		CollateralDelta: collateralDelta,
		TradeRatio:      formatTradeRatio(p.TradeRatio),
		Timestamp:       ev.Timestamp,
	}

	// Borrowed balances are absolute on the event and are not part of the
	// three-delta ledger entry; set them directly.
	pos.BorrowedBaseToken = p.BorrowedBaseToken
	pos.BorrowedQuoteToken = p.BorrowedQuoteToken

	if err := r.commitTransaction(ctx, ev, pos, tx); err != nil {
		return err
	}

	return r.store.InsertMarketPrice(ctx, &market.MarketPrice{
		ChainID:     ev.ChainID,
		Address:     ev.Address,
		PeriodID:    p.PeriodID,
		BlockNumber: ev.BlockNumber,
		LogIndex:    ev.LogIndex,
		Price:       p.FinalPrice,
		Timestamp:   ev.Timestamp,
	})
}

// transfer mutates only the owner field. A transfer can land before the
// position's first trade event, in which case a zero-valued position is
// created to carry the owner.
func (r *Reducer) transfer(ctx context.Context, ev *events.RawEvent, p events.PositionTransfer) error {
	pos, err := r.store.FindPositionAnyPeriod(ctx, ev.Address, p.TokenID)
	if err != nil {
		if !market.IsNotFound(err) {
			return err
		}
		periodID := latestPeriodID(ctx, r.store, ev.Address)
		pos = newPosition(ev, periodID, p.TokenID)
	}

	pos.Owner = p.To
	return r.store.UpsertPosition(ctx, pos)
}

// commitTransaction appends the ledger entry and folds its deltas into the
// position's running totals, then persists the position.
func (r *Reducer) commitTransaction(ctx context.Context, ev *events.RawEvent, pos *market.Position, tx *market.Transaction) error {
	if err := r.store.InsertTransaction(ctx, tx); err != nil {
		return err
	}

	var err error
	if pos.BaseToken, err = AddDec(pos.BaseToken, tx.BaseTokenDelta); err != nil {
		return fmt.Errorf("fold base token: %w", err)
	}
	if pos.QuoteToken, err = AddDec(pos.QuoteToken, tx.QuoteTokenDelta); err != nil {
		return fmt.Errorf("fold quote token: %w", err)
	}
	if pos.Collateral, err = AddDec(pos.Collateral, tx.CollateralDelta); err != nil {
		return fmt.Errorf("fold collateral: %w", err)
	}

	if err := r.store.UpsertPosition(ctx, pos); err != nil {
		return err
	}

	r.logger.Debug("Applied transaction",
		zap.String("type", string(tx.Type)),
		zap.Uint64("period_id", tx.PeriodID),
		zap.Uint64("position_id", tx.PositionID),
		zap.Uint64("block", ev.BlockNumber),
		zap.Uint32("log_index", ev.LogIndex))

	return nil
}

func newPosition(ev *events.RawEvent, periodID, positionID uint64) *market.Position {
	return &market.Position{
		ChainID:            ev.ChainID,
		Address:            ev.Address,
		PeriodID:           periodID,
		PositionID:         positionID,
		BaseToken:          "0",
		QuoteToken:         "0",
		BorrowedBaseToken:  "0",
		BorrowedQuoteToken: "0",
		Collateral:         "0",
	}
}

func latestPeriodID(ctx context.Context, store market.Store, address string) uint64 {
	periods, err := store.ListPeriods(ctx, address)
	if err != nil || len(periods) == 0 {
		return 0
	}
	return periods[len(periods)-1].PeriodID
}

// formatTradeRatio renders the contract's fixed-point ratio as a plain
// decimal for read consumers.
func formatTradeRatio(raw string) string {
	if raw == "" || raw == "0" {
		return ""
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return ""
	}
	return v.Shift(-tradeRatioScale).String()
}
