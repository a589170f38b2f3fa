package events

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// marketABIJSON is the event surface of the tracked market contract. Only
// events are listed; calls used for cold-start hydration live in pkg/chain.
const marketABIJSON = `[
  {"type":"event","name":"MarketInitialized","inputs":[
    {"name":"owner","type":"address","indexed":true},
    {"name":"collateralAsset","type":"address","indexed":false},
    {"name":"priceOracle","type":"address","indexed":false},
    {"name":"settlementOracle","type":"address","indexed":false},
    {"name":"feeRate","type":"uint256","indexed":false},
    {"name":"bondAmount","type":"uint256","indexed":false},
    {"name":"bondCurrency","type":"address","indexed":false},
    {"name":"minPriceTick","type":"int24","indexed":false},
    {"name":"maxPriceTick","type":"int24","indexed":false}]},
  {"type":"event","name":"MarketUpdated","inputs":[
    {"name":"priceOracle","type":"address","indexed":false},
    {"name":"settlementOracle","type":"address","indexed":false},
    {"name":"feeRate","type":"uint256","indexed":false},
    {"name":"bondAmount","type":"uint256","indexed":false},
    {"name":"bondCurrency","type":"address","indexed":false},
    {"name":"minPriceTick","type":"int24","indexed":false},
    {"name":"maxPriceTick","type":"int24","indexed":false}]},
  {"type":"event","name":"PeriodCreated","inputs":[
    {"name":"periodId","type":"uint256","indexed":true},
    {"name":"startTime","type":"uint256","indexed":false},
    {"name":"endTime","type":"uint256","indexed":false},
    {"name":"startingSqrtPriceX96","type":"uint160","indexed":false}]},
  {"type":"event","name":"PeriodSettled","inputs":[
    {"name":"periodId","type":"uint256","indexed":true},
    {"name":"settlementPrice","type":"uint256","indexed":false}]},
  {"type":"event","name":"LiquidityPositionCreated","inputs":[
    {"name":"periodId","type":"uint256","indexed":true},
    {"name":"positionId","type":"uint256","indexed":true},
    {"name":"sender","type":"address","indexed":false},
    {"name":"addedAmount0","type":"uint256","indexed":false},
    {"name":"addedAmount1","type":"uint256","indexed":false},
    {"name":"collateralAmount","type":"uint256","indexed":false},
    {"name":"lowerTick","type":"int24","indexed":false},
    {"name":"upperTick","type":"int24","indexed":false}]},
  {"type":"event","name":"LiquidityPositionIncreased","inputs":[
    {"name":"periodId","type":"uint256","indexed":true},
    {"name":"positionId","type":"uint256","indexed":true},
    {"name":"addedAmount0","type":"uint256","indexed":false},
    {"name":"addedAmount1","type":"uint256","indexed":false},
    {"name":"collateralAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"LiquidityPositionDecreased","inputs":[
    {"name":"periodId","type":"uint256","indexed":true},
    {"name":"positionId","type":"uint256","indexed":true},
    {"name":"removedAmount0","type":"uint256","indexed":false},
    {"name":"removedAmount1","type":"uint256","indexed":false},
    {"name":"collateralRemoved","type":"uint256","indexed":false}]},
  {"type":"event","name":"LiquidityPositionClosed","inputs":[
    {"name":"periodId","type":"uint256","indexed":true},
    {"name":"positionId","type":"uint256","indexed":true},
    {"name":"collateralReturned","type":"uint256","indexed":false}]},
  {"type":"event","name":"TraderPositionCreated","inputs":[
    {"name":"periodId","type":"uint256","indexed":true},
    {"name":"positionId","type":"uint256","indexed":true},
    {"name":"sender","type":"address","indexed":false},
    {"name":"initialPrice","type":"uint256","indexed":false},
    {"name":"finalPrice","type":"uint256","indexed":false},
    {"name":"tradeRatio","type":"uint256","indexed":false},
    {"name":"baseTokenAmount","type":"uint256","indexed":false},
    {"name":"quoteTokenAmount","type":"uint256","indexed":false},
    {"name":"borrowedBaseTokenAmount","type":"uint256","indexed":false},
    {"name":"borrowedQuoteTokenAmount","type":"uint256","indexed":false},
    {"name":"collateralAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"TraderPositionModified","inputs":[
    {"name":"periodId","type":"uint256","indexed":true},
    {"name":"positionId","type":"uint256","indexed":true},
    {"name":"sender","type":"address","indexed":false},
    {"name":"initialPrice","type":"uint256","indexed":false},
    {"name":"finalPrice","type":"uint256","indexed":false},
    {"name":"tradeRatio","type":"uint256","indexed":false},
    {"name":"baseTokenAmount","type":"uint256","indexed":false},
    {"name":"quoteTokenAmount","type":"uint256","indexed":false},
    {"name":"borrowedBaseTokenAmount","type":"uint256","indexed":false},
    {"name":"borrowedQuoteTokenAmount","type":"uint256","indexed":false},
    {"name":"collateralAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Transfer","inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":true}]}
]`

var (
	marketABIOnce sync.Once
	marketABI     abi.ABI
	marketABIErr  error
)

// MarketABI returns the parsed market contract ABI.
func MarketABI() (abi.ABI, error) {
	marketABIOnce.Do(func() {
		marketABI, marketABIErr = abi.JSON(strings.NewReader(marketABIJSON))
	})
	return marketABI, marketABIErr
}
