package events

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAddress = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	testSender  = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	testTime    = time.Unix(1700000000, 0).UTC()
)

// packLog assembles a raw log the way the node would emit it: non-indexed
// args ABI-packed into Data, indexed args as topics after the selector.
func packLog(t *testing.T, name string, indexed []common.Hash, args ...interface{}) types.Log {
	t.Helper()
	contractABI, err := MarketABI()
	require.NoError(t, err)

	ev, ok := contractABI.Events[name]
	require.True(t, ok, "event %s not in ABI", name)

	data, err := ev.Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)

	topics := append([]common.Hash{ev.ID}, indexed...)
	return types.Log{
		Address:     testAddress,
		Topics:      topics,
		Data:        data,
		BlockNumber: 123,
		TxHash:      common.HexToHash("0x01"),
		Index:       4,
	}
}

func TestDecodeLiquidityPositionCreated(t *testing.T) {
	lg := packLog(t, "LiquidityPositionCreated",
		[]common.Hash{
			common.BigToHash(big.NewInt(1)), // periodId
			common.BigToHash(big.NewInt(7)), // positionId
		},
		testSender,
		big.NewInt(500),
		big.NewInt(300),
		big.NewInt(200),
		big.NewInt(-60),
		big.NewInt(60),
	)

	ev, err := DecodeLog(1, lg, testTime)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), ev.ChainID)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", ev.Address)
	assert.Equal(t, "LiquidityPositionCreated", ev.Name)
	assert.Equal(t, uint64(123), ev.BlockNumber)
	assert.Equal(t, uint32(4), ev.LogIndex)
	assert.Equal(t, testTime, ev.Timestamp)
	assert.Len(t, ev.Topics, 3)

	p, ok := ev.Payload.(LiquidityPositionCreated)
	require.True(t, ok, "payload type %T", ev.Payload)
	assert.Equal(t, uint64(1), p.PeriodID)
	assert.Equal(t, uint64(7), p.PositionID)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", p.Sender)
	assert.Equal(t, "500", p.AddedAmount0)
	assert.Equal(t, "300", p.AddedAmount1)
	assert.Equal(t, "200", p.CollateralAmount)
	assert.Equal(t, int64(-60), p.LowerTick)
	assert.Equal(t, int64(60), p.UpperTick)
}

func TestDecodeTraderPositionCreated(t *testing.T) {
	lg := packLog(t, "TraderPositionCreated",
		[]common.Hash{
			common.BigToHash(big.NewInt(1)),
			common.BigToHash(big.NewInt(42)),
		},
		testSender,
		big.NewInt(100), // initialPrice
		big.NewInt(120), // finalPrice
		new(big.Int).SetUint64(1500000000000000000),
		big.NewInt(1000), // baseTokenAmount
		big.NewInt(500),  // quoteTokenAmount
		big.NewInt(10),   // borrowedBaseTokenAmount
		big.NewInt(20),   // borrowedQuoteTokenAmount
		big.NewInt(250),  // collateralAmount
	)

	ev, err := DecodeLog(1, lg, testTime)
	require.NoError(t, err)

	p, ok := ev.Payload.(TraderPositionCreated)
	require.True(t, ok, "payload type %T", ev.Payload)
	assert.Equal(t, "100", p.InitialPrice)
	assert.Equal(t, "120", p.FinalPrice)
	assert.Equal(t, "1500000000000000000", p.TradeRatio)
	assert.Equal(t, "1000", p.BaseTokenAmount)
	assert.Equal(t, "10", p.BorrowedBaseToken)
	assert.Equal(t, "250", p.CollateralAmount)
}

func TestDecodeTransferAllIndexed(t *testing.T) {
	lg := packLog(t, "Transfer",
		[]common.Hash{
			common.BytesToHash(common.HexToAddress("0x0").Bytes()),
			common.BytesToHash(testSender.Bytes()),
			common.BigToHash(big.NewInt(42)),
		},
	)

	ev, err := DecodeLog(1, lg, testTime)
	require.NoError(t, err)

	p, ok := ev.Payload.(PositionTransfer)
	require.True(t, ok, "payload type %T", ev.Payload)
	assert.Equal(t, "0x0000000000000000000000000000000000000000", p.From)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", p.To)
	assert.Equal(t, uint64(42), p.TokenID)
}

func TestDecodeUnknownSelector(t *testing.T) {
	lg := types.Log{
		Address:     testAddress,
		Topics:      []common.Hash{common.HexToHash("0xdeadbeef")},
		BlockNumber: 1,
	}
	_, err := DecodeLog(1, lg, testTime)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeNoTopics(t *testing.T) {
	_, err := DecodeLog(1, types.Log{Address: testAddress}, testTime)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeMissingIndexedTopics(t *testing.T) {
	lg := packLog(t, "PeriodSettled", nil, big.NewInt(115))
	// Strip the indexed periodId topic; only the selector remains.
	_, err := DecodeLog(1, lg, testTime)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestArgsJSON(t *testing.T) {
	out := ArgsJSON(PeriodCreated{PeriodID: 1, StartTime: 1000, EndTime: 2000, StartingSqrtPrice: "79"})
	assert.Contains(t, out, `"PeriodID":1`)
	assert.Contains(t, out, `"StartingSqrtPrice":"79"`)
}
