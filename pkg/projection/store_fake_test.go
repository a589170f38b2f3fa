package projection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gridline-markets/gridx/pkg/db/market"
)

// fakeStore is an in-memory market.Store for reducer and applier tests.
type fakeStore struct {
	markets        map[string]*market.Market
	periods        map[string]map[uint64]*market.Period
	eventKeys      map[string]struct{}
	events         []*market.Event
	positions      map[string]*market.Position
	transactions   []*market.Transaction
	marketPrices   []*market.MarketPrice
	resourcePrices map[string]*market.ResourcePrice
	indexPrices    map[string]*market.IndexPrice
}

var _ market.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		markets:        map[string]*market.Market{},
		periods:        map[string]map[uint64]*market.Period{},
		eventKeys:      map[string]struct{}{},
		positions:      map[string]*market.Position{},
		resourcePrices: map[string]*market.ResourcePrice{},
		indexPrices:    map[string]*market.IndexPrice{},
	}
}

func posKey(address string, periodID, positionID uint64) string {
	return fmt.Sprintf("%s:%d:%d", address, periodID, positionID)
}

func (s *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fakeStore) UpsertMarket(_ context.Context, m *market.Market) error {
	s.markets[m.Address] = m
	return nil
}

func (s *fakeStore) GetMarket(_ context.Context, address string) (*market.Market, error) {
	m, ok := s.markets[address]
	if !ok {
		return nil, market.ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) ListMarkets(_ context.Context) ([]*market.Market, error) {
	out := make([]*market.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *fakeStore) UpsertPeriod(_ context.Context, p *market.Period) error {
	if s.periods[p.Address] == nil {
		s.periods[p.Address] = map[uint64]*market.Period{}
	}
	s.periods[p.Address][p.PeriodID] = p
	return nil
}

func (s *fakeStore) GetPeriod(_ context.Context, address string, periodID uint64) (*market.Period, error) {
	p, ok := s.periods[address][periodID]
	if !ok {
		return nil, market.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) ListPeriods(_ context.Context, address string) ([]*market.Period, error) {
	out := make([]*market.Period, 0, len(s.periods[address]))
	for _, p := range s.periods[address] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodID < out[j].PeriodID })
	return out, nil
}

func (s *fakeStore) InsertEvent(_ context.Context, e *market.Event) (bool, error) {
	key := fmt.Sprintf("%s:%d:%d", e.Address, e.BlockNumber, e.LogIndex)
	if _, dup := s.eventKeys[key]; dup {
		return false, nil
	}
	s.eventKeys[key] = struct{}{}
	s.events = append(s.events, e)
	return true, nil
}

func (s *fakeStore) CountEvents(_ context.Context, address string) (uint64, error) {
	var n uint64
	for _, e := range s.events {
		if e.Address == address {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ListEvents(_ context.Context, address string, fromBlock, toBlock uint64) ([]*market.Event, error) {
	var out []*market.Event
	for _, e := range s.events {
		if e.Address == address && e.BlockNumber >= fromBlock && e.BlockNumber <= toBlock {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) LatestEventBlock(_ context.Context, address string) (uint64, error) {
	var max uint64
	for _, e := range s.events {
		if e.Address == address && e.BlockNumber > max {
			max = e.BlockNumber
		}
	}
	return max, nil
}

func (s *fakeStore) GetPosition(_ context.Context, address string, periodID, positionID uint64) (*market.Position, error) {
	p, ok := s.positions[posKey(address, periodID, positionID)]
	if !ok {
		return nil, market.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) GetPositionForUpdate(ctx context.Context, address string, periodID, positionID uint64) (*market.Position, error) {
	return s.GetPosition(ctx, address, periodID, positionID)
}

func (s *fakeStore) FindPositionAnyPeriod(_ context.Context, address string, positionID uint64) (*market.Position, error) {
	var found *market.Position
	for _, p := range s.positions {
		if p.Address != address || p.PositionID != positionID {
			continue
		}
		if found == nil || p.PeriodID > found.PeriodID {
			found = p
		}
	}
	if found == nil {
		return nil, market.ErrNotFound
	}
	return found, nil
}

func (s *fakeStore) UpsertPosition(_ context.Context, p *market.Position) error {
	s.positions[posKey(p.Address, p.PeriodID, p.PositionID)] = p
	return nil
}

func (s *fakeStore) ListPositions(_ context.Context, address string, isLP *bool) ([]*market.Position, error) {
	var out []*market.Position
	for _, p := range s.positions {
		if p.Address != address {
			continue
		}
		if isLP != nil && p.IsLP != *isLP {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })
	return out, nil
}

func (s *fakeStore) InsertTransaction(_ context.Context, t *market.Transaction) error {
	s.transactions = append(s.transactions, t)
	return nil
}

func (s *fakeStore) ListTransactions(_ context.Context, address string, periodID, positionID *uint64) ([]*market.Transaction, error) {
	var out []*market.Transaction
	for _, t := range s.transactions {
		if t.Address != address {
			continue
		}
		if periodID != nil && t.PeriodID != *periodID {
			continue
		}
		if positionID != nil && t.PositionID != *positionID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) ListTransactionsInWindow(_ context.Context, address string, periodID uint64, from, to time.Time) ([]*market.Transaction, error) {
	var out []*market.Transaction
	for _, t := range s.transactions {
		if t.Address != address || t.PeriodID != periodID {
			continue
		}
		if t.Timestamp.Before(from) || t.Timestamp.After(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) InsertMarketPrice(_ context.Context, p *market.MarketPrice) error {
	s.marketPrices = append(s.marketPrices, p)
	return nil
}

func (s *fakeStore) ListMarketPricesInWindow(_ context.Context, address string, periodID uint64, from, to time.Time) ([]*market.MarketPrice, error) {
	var out []*market.MarketPrice
	for _, p := range s.marketPrices {
		if p.Address != address || p.PeriodID != periodID {
			continue
		}
		if p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) UpsertResourcePrice(_ context.Context, p *market.ResourcePrice) error {
	s.resourcePrices[fmt.Sprintf("%s:%d", p.Address, p.BlockNumber)] = p
	return nil
}

func (s *fakeStore) ListResourcePricesInRange(_ context.Context, address string, from, to int64) ([]*market.ResourcePrice, error) {
	var out []*market.ResourcePrice
	for _, p := range s.resourcePrices {
		if p.Address != address || p.Timestamp < from || p.Timestamp > to {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (s *fakeStore) ResourcePriceBlocks(_ context.Context, address string, fromBlock, toBlock uint64) ([]uint64, error) {
	var out []uint64
	for _, p := range s.resourcePrices {
		if p.Address == address && p.BlockNumber >= fromBlock && p.BlockNumber <= toBlock {
			out = append(out, p.BlockNumber)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *fakeStore) UpsertIndexPrice(_ context.Context, p *market.IndexPrice) error {
	s.indexPrices[fmt.Sprintf("%s:%d:%d", p.Address, p.PeriodID, p.Timestamp)] = p
	return nil
}

func (s *fakeStore) ListIndexPricesInRange(_ context.Context, address string, periodID uint64, from, to int64) ([]*market.IndexPrice, error) {
	var out []*market.IndexPrice
	for _, p := range s.indexPrices {
		if p.Address != address || p.PeriodID != periodID || p.Timestamp < from || p.Timestamp > to {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
