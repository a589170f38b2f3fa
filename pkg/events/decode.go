package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrDecode marks a log that does not match the known ABI. Decode failures
// are non-fatal to the stream: the caller logs a warning and skips the log.
var ErrDecode = errors.New("log decode failed")

// DecodeLog normalizes one raw chain log into a RawEvent with a typed
// payload. Works identically for watch and backfill origins.
func DecodeLog(chainID uint64, lg types.Log, blockTime time.Time) (*RawEvent, error) {
	contractABI, err := MarketABI()
	if err != nil {
		return nil, fmt.Errorf("market abi: %w", err)
	}

	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("log %d/%d has no topics: %w", lg.BlockNumber, lg.Index, ErrDecode)
	}

	ev, err := contractABI.EventByID(lg.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("unknown event selector %s: %w", lg.Topics[0].Hex(), ErrDecode)
	}

	args, err := unpackArgs(ev, lg)
	if err != nil {
		return nil, fmt.Errorf("unpack %s at %d/%d: %w", ev.Name, lg.BlockNumber, lg.Index, errors.Join(err, ErrDecode))
	}

	payload, err := buildPayload(ev.Name, args)
	if err != nil {
		return nil, fmt.Errorf("payload %s at %d/%d: %w", ev.Name, lg.BlockNumber, lg.Index, errors.Join(err, ErrDecode))
	}

	topics := make([]string, 0, len(lg.Topics))
	for _, t := range lg.Topics {
		topics = append(topics, t.Hex())
	}

	return &RawEvent{
		ChainID:     chainID,
		Address:     strings.ToLower(lg.Address.Hex()),
		Name:        ev.Name,
		BlockNumber: lg.BlockNumber,
		LogIndex:    uint32(lg.Index),
		TxHash:      lg.TxHash.Hex(),
		Topics:      topics,
		Timestamp:   blockTime,
		Payload:     payload,
	}, nil
}

// unpackArgs decodes both indexed and non-indexed inputs into one map with
// all values normalized: big integers become decimal strings so no argument
// ever travels as a lossy native numeric.
func unpackArgs(ev *abi.Event, lg types.Log) (map[string]string, error) {
	raw := make(map[string]interface{})

	if err := ev.Inputs.NonIndexed().UnpackIntoMap(raw, lg.Data); err != nil {
		return nil, err
	}

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(indexed) > 0 {
		if len(lg.Topics) < len(indexed)+1 {
			return nil, fmt.Errorf("expected %d indexed topics, got %d", len(indexed), len(lg.Topics)-1)
		}
		if err := abi.ParseTopicsIntoMap(raw, indexed, lg.Topics[1:]); err != nil {
			return nil, err
		}
	}

	args := make(map[string]string, len(raw))
	for k, v := range raw {
		args[k] = normalizeArg(v)
	}
	return args, nil
}

func normalizeArg(v interface{}) string {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case common.Address:
		return strings.ToLower(x.Hex())
	case common.Hash:
		return x.Hex()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int8:
		return fmt.Sprintf("%d", x)
	case int16:
		return fmt.Sprintf("%d", x)
	case int32:
		return fmt.Sprintf("%d", x)
	case int64:
		return fmt.Sprintf("%d", x)
	case uint8:
		return fmt.Sprintf("%d", x)
	case uint16:
		return fmt.Sprintf("%d", x)
	case uint32:
		return fmt.Sprintf("%d", x)
	case uint64:
		return fmt.Sprintf("%d", x)
	case []byte:
		return "0x" + common.Bytes2Hex(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func buildPayload(name string, args map[string]string) (Payload, error) {
	a := argReader{args: args}

	var p Payload
	switch name {
	case "MarketInitialized":
		p = MarketInitialized{
			Owner:            a.str("owner"),
			CollateralAsset:  a.str("collateralAsset"),
			PriceOracle:      a.str("priceOracle"),
			SettlementOracle: a.str("settlementOracle"),
			FeeRate:          a.dec("feeRate"),
			BondAmount:       a.dec("bondAmount"),
			BondCurrency:     a.str("bondCurrency"),
			MinPriceTick:     a.i64("minPriceTick"),
			MaxPriceTick:     a.i64("maxPriceTick"),
		}
	case "MarketUpdated":
		p = MarketUpdated{
			PriceOracle:      a.str("priceOracle"),
			SettlementOracle: a.str("settlementOracle"),
			FeeRate:          a.dec("feeRate"),
			BondAmount:       a.dec("bondAmount"),
			BondCurrency:     a.str("bondCurrency"),
			MinPriceTick:     a.i64("minPriceTick"),
			MaxPriceTick:     a.i64("maxPriceTick"),
		}
	case "PeriodCreated":
		p = PeriodCreated{
			PeriodID:          a.u64("periodId"),
			StartTime:         a.i64("startTime"),
			EndTime:           a.i64("endTime"),
			StartingSqrtPrice: a.dec("startingSqrtPriceX96"),
		}
	case "PeriodSettled":
		p = PeriodSettled{
			PeriodID:        a.u64("periodId"),
			SettlementPrice: a.dec("settlementPrice"),
		}
	case "LiquidityPositionCreated":
		p = LiquidityPositionCreated{
			PeriodID:         a.u64("periodId"),
			PositionID:       a.u64("positionId"),
			Sender:           a.str("sender"),
			AddedAmount0:     a.dec("addedAmount0"),
			AddedAmount1:     a.dec("addedAmount1"),
			CollateralAmount: a.dec("collateralAmount"),
			LowerTick:        a.i64("lowerTick"),
			UpperTick:        a.i64("upperTick"),
		}
	case "LiquidityPositionIncreased":
		p = LiquidityPositionIncreased{
			PeriodID:         a.u64("periodId"),
			PositionID:       a.u64("positionId"),
			AddedAmount0:     a.dec("addedAmount0"),
			AddedAmount1:     a.dec("addedAmount1"),
			CollateralAmount: a.dec("collateralAmount"),
		}
	case "LiquidityPositionDecreased":
		p = LiquidityPositionDecreased{
			PeriodID:          a.u64("periodId"),
			PositionID:        a.u64("positionId"),
			RemovedAmount0:    a.dec("removedAmount0"),
			RemovedAmount1:    a.dec("removedAmount1"),
			CollateralRemoved: a.dec("collateralRemoved"),
		}
	case "LiquidityPositionClosed":
		p = LiquidityPositionClosed{
			PeriodID:           a.u64("periodId"),
			PositionID:         a.u64("positionId"),
			CollateralReturned: a.dec("collateralReturned"),
		}
	case "TraderPositionCreated":
		p = TraderPositionCreated{
			PeriodID:           a.u64("periodId"),
			PositionID:         a.u64("positionId"),
			Sender:             a.str("sender"),
			InitialPrice:       a.dec("initialPrice"),
			FinalPrice:         a.dec("finalPrice"),
			TradeRatio:         a.dec("tradeRatio"),
			BaseTokenAmount:    a.dec("baseTokenAmount"),
			QuoteTokenAmount:   a.dec("quoteTokenAmount"),
			BorrowedBaseToken:  a.dec("borrowedBaseTokenAmount"),
			BorrowedQuoteToken: a.dec("borrowedQuoteTokenAmount"),
			CollateralAmount:   a.dec("collateralAmount"),
		}
	case "TraderPositionModified":
		p = TraderPositionModified{
			PeriodID:           a.u64("periodId"),
			PositionID:         a.u64("positionId"),
			Sender:             a.str("sender"),
			InitialPrice:       a.dec("initialPrice"),
			FinalPrice:         a.dec("finalPrice"),
			TradeRatio:         a.dec("tradeRatio"),
			BaseTokenAmount:    a.dec("baseTokenAmount"),
			QuoteTokenAmount:   a.dec("quoteTokenAmount"),
			BorrowedBaseToken:  a.dec("borrowedBaseTokenAmount"),
			BorrowedQuoteToken: a.dec("borrowedQuoteTokenAmount"),
			CollateralAmount:   a.dec("collateralAmount"),
		}
	case "Transfer":
		p = PositionTransfer{
			From:    a.str("from"),
			To:      a.str("to"),
			TokenID: a.u64("tokenId"),
		}
	default:
		p = UnknownEvent{Name: name}
	}

	if a.err != nil {
		return nil, a.err
	}
	return p, nil
}

// argReader pulls typed values from the normalized arg map, collecting the
// first error instead of forcing a check per field.
type argReader struct {
	args map[string]string
	err  error
}

func (a *argReader) str(key string) string {
	v, ok := a.args[key]
	if !ok && a.err == nil {
		a.err = fmt.Errorf("missing argument %q", key)
	}
	return v
}

func (a *argReader) dec(key string) string {
	v := a.str(key)
	if a.err != nil {
		return ""
	}
	if _, ok := new(big.Int).SetString(v, 10); !ok {
		a.err = fmt.Errorf("argument %q is not a decimal integer: %q", key, v)
		return ""
	}
	return v
}

func (a *argReader) u64(key string) uint64 {
	v := a.str(key)
	if a.err != nil {
		return 0
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || !n.IsUint64() {
		a.err = fmt.Errorf("argument %q is not a uint64: %q", key, v)
		return 0
	}
	return n.Uint64()
}

func (a *argReader) i64(key string) int64 {
	v := a.str(key)
	if a.err != nil {
		return 0
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || !n.IsInt64() {
		a.err = fmt.Errorf("argument %q is not an int64: %q", key, v)
		return 0
	}
	return n.Int64()
}

// ArgsJSON renders the decoded payload for at-rest storage next to the
// event row. Replay tooling reads this, the reducer never does.
func ArgsJSON(p Payload) string {
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}
