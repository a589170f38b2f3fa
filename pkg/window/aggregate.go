package window

import (
	"math/big"
	"sort"
	"time"

	"github.com/gridline-markets/gridx/pkg/db/market"
)

// Candle is an open/high/low/close aggregate over one bucket. Empty buckets
// keep Open/High/Low/Close empty strings.
type Candle struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Open  string    `json:"open"`
	High  string    `json:"high"`
	Low   string    `json:"low"`
	Close string    `json:"close"`
}

// VolumeBucket sums absolute base-token deltas over one bucket.
type VolumeBucket struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Volume string    `json:"volume"`
}

// IndexPoint is one point of an index price series.
type IndexPoint struct {
	Timestamp int64  `json:"timestamp"`
	Price     string `json:"price"`
}

// LeaderboardRow ranks one owner by traded volume within the window.
type LeaderboardRow struct {
	Owner  string `json:"owner"`
	Volume string `json:"volume"`
	Trades int    `json:"trades"`
}

// Candles folds time-ordered price samples into one candle per bucket.
// Open/Close are the first/last sample by ascending timestamp; High/Low
// compare as big integers.
func Candles(span Span, prices []*market.MarketPrice) []Candle {
	out := make([]Candle, span.Count)
	for i := range out {
		out[i].Start = span.BucketStart(i)
		out[i].End = span.BucketStart(i + 1)
	}

	for _, p := range prices {
		c := &out[span.BucketOf(p.Timestamp)]
		if c.Open == "" {
			c.Open = p.Price
			c.High = p.Price
			c.Low = p.Price
		}
		c.Close = p.Price
		if cmpNumeric(p.Price, c.High) > 0 {
			c.High = p.Price
		}
		if cmpNumeric(p.Price, c.Low) < 0 {
			c.Low = p.Price
		}
	}
	return out
}

// Volume sums |baseTokenDelta| of the transactions per bucket. Empty buckets
// carry "0".
func Volume(span Span, txs []*market.Transaction) []VolumeBucket {
	sums := make([]*big.Int, span.Count)
	for i := range sums {
		sums[i] = new(big.Int)
	}

	for _, tx := range txs {
		d, ok := new(big.Int).SetString(tx.BaseTokenDelta, 10)
		if !ok {
			continue
		}
		i := span.BucketOf(tx.Timestamp)
		sums[i].Add(sums[i], d.Abs(d))
	}

	out := make([]VolumeBucket, span.Count)
	for i := range out {
		out[i] = VolumeBucket{
			Start:  span.BucketStart(i),
			End:    span.BucketStart(i + 1),
			Volume: sums[i].String(),
		}
	}
	return out
}

// IndexSeries filters index prices to the span. The time axis of index
// prices is the raw sample timestamps, not buckets.
func IndexSeries(span Span, rows []*market.IndexPrice) []IndexPoint {
	out := make([]IndexPoint, 0, len(rows))
	for _, r := range rows {
		ts := time.Unix(r.Timestamp, 0)
		if ts.Before(span.Start) || ts.After(span.End) {
			continue
		}
		out = append(out, IndexPoint{Timestamp: r.Timestamp, Price: r.Price})
	}
	return out
}

// Leaderboard ranks position owners by total traded volume within the
// window, descending. Transactions without a resolvable owner are skipped by
// the caller; here owner is taken as given.
func Leaderboard(txs []*market.Transaction, ownerOf func(positionID uint64) string) []LeaderboardRow {
	type acc struct {
		volume *big.Int
		trades int
	}
	byOwner := map[string]*acc{}

	for _, tx := range txs {
		if tx.Type != market.TxLong && tx.Type != market.TxShort {
			continue
		}
		owner := ownerOf(tx.PositionID)
		if owner == "" {
			continue
		}
		d, ok := new(big.Int).SetString(tx.BaseTokenDelta, 10)
		if !ok {
			continue
		}
		a := byOwner[owner]
		if a == nil {
			a = &acc{volume: new(big.Int)}
			byOwner[owner] = a
		}
		a.volume.Add(a.volume, d.Abs(d))
		a.trades++
	}

	out := make([]LeaderboardRow, 0, len(byOwner))
	for owner, a := range byOwner {
		out = append(out, LeaderboardRow{Owner: owner, Volume: a.volume.String(), Trades: a.trades})
	}
	sort.Slice(out, func(i, j int) bool {
		vi, _ := new(big.Int).SetString(out[i].Volume, 10)
		vj, _ := new(big.Int).SetString(out[j].Volume, 10)
		if c := vi.Cmp(vj); c != 0 {
			return c > 0
		}
		return out[i].Owner < out[j].Owner
	})
	return out
}

func cmpNumeric(a, b string) int {
	x, okx := new(big.Int).SetString(a, 10)
	y, oky := new(big.Int).SetString(b, 10)
	if !okx || !oky {
		return 0
	}
	return x.Cmp(y)
}
