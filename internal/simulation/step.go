package simulation

import (
	"sync"

	"github.com/efreitasn/marketsim/internal/book"
	"github.com/efreitasn/marketsim/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ProcessStep drains every asset's pending queue, resolves crossings
// under price-time priority, fires asset lifecycle callbacks, and
// returns the step's StepResult.
func (s *Simulation) ProcessStep() (*StepResult, error) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	if s.halted {
		return nil, domain.ErrInvariantViolation
	}
	if s.step >= s.n {
		return nil, domain.ErrSimulationEnded
	}

	s.assetsMu.RLock()
	assets := make([]*assetRecord, len(s.assets))
	copy(assets, s.assets)
	s.assetsMu.RUnlock()

	// The stepping thread owns every order book for the whole step;
	// observer queries block on the shared lock until the step returns.
	for _, rec := range assets {
		if bk, ok := s.books[rec.id]; ok {
			bk.Lock()
			defer bk.Unlock()
		}
	}

	eh := engineHandle{s}
	ph := portfolioHandle{s}

	// Step 1: on_simulation_start, once, in registration order.
	if s.step == 0 {
		for _, rec := range assets {
			rec.behavior.OnSimulationStart(eh, ph)
		}
	}

	// Step 2: before_step for every asset.
	for _, rec := range assets {
		rec.behavior.BeforeStep(eh, ph)
	}

	// Step 3: atomic drain under the submission lock (the per-asset queue
	// mutex), producing a local to_process per asset.
	toProcess := make(map[domain.AssetID][]any, len(assets))
	for _, rec := range assets {
		pq := s.pending[rec.id]
		pq.mu.Lock()
		toProcess[rec.id] = pq.orders
		pq.orders = nil
		pq.mu.Unlock()
	}

	submitted := make(map[domain.AssetID][]domain.OrderID)
	transacted := make(map[domain.AssetID]map[domain.OrderID]float32)
	cancelled := make(map[domain.AssetID][]domain.OrderID)
	transactions := make(map[domain.AssetID][]domain.Transaction)

	// Step 4: match, in registration order, within an asset in submission
	// order.
	for _, rec := range assets {
		if !rec.tradeable {
			continue
		}
		ops := toProcess[rec.id]
		if len(ops) == 0 {
			continue
		}

		bk := s.books[rec.id]
		txByOrder := make(map[domain.OrderID]float32)
		var txs []domain.Transaction
		var stepErr error

		for _, raw := range ops {
			if stepErr != nil {
				break
			}
			switch o := raw.(type) {
			case *domain.LimitOrder:
				stepErr = s.matchLimit(eh, ph, rec, bk, o, txByOrder, &txs)
				submitted[rec.id] = append(submitted[rec.id], o.OrderID)
			case *domain.CancelOrder:
				if bk.Cancel(o.OrderIDToCancel) {
					cancelled[rec.id] = append(cancelled[rec.id], o.OrderIDToCancel)
				}
			case *domain.MarketOrder:
				s.matchMarket(eh, ph, rec, bk, o, txByOrder, &txs)
			}
		}

		if stepErr != nil {
			s.halted = true
			return nil, stepErr
		}

		if len(txByOrder) > 0 {
			transacted[rec.id] = txByOrder
		}
		if len(txs) > 0 {
			transactions[rec.id] = txs
		}
	}

	// Step 5: after_step for every asset.
	for _, rec := range assets {
		rec.behavior.AfterStep(eh, ph)
	}

	// Step 6: advance the step counter.
	s.step++
	newStep := s.step

	// Step 7: on_simulation_end once the terminal step is reached.
	if newStep == s.n {
		for _, rec := range assets {
			rec.behavior.OnSimulationEnd(eh, ph)
		}
		s.state = Ended
	} else if s.state == Created {
		s.state = Running
	}

	// Step 8: snapshots and per-user statistics.
	bookDepth, flat := s.buildBookSnapshots(assets)
	stats := s.computeStatistics(assets)

	s.usersMu.RLock()
	usernames := make(map[domain.UserID]string, len(s.users))
	for id, u := range s.users {
		usernames[id] = u.Username
	}
	s.usersMu.RUnlock()

	result := &StepResult{
		CurrentStep:               newStep,
		HasNextStep:               newStep < s.n,
		SubmittedLimitOrders:      submitted,
		TransactedOrders:          transacted,
		CancelledOrders:           cancelled,
		Transactions:              transactions,
		OrderBookPerAsset:         flat,
		BookDepthPerAsset:         bookDepth,
		Portfolios:                s.portfolio.SnapshotTable(),
		UserIDToUsername:         usernames,
		StatisticsPerUserPerAsset: stats,
	}
	return result, nil
}

// matchLimit inserts a limit order and resolves crossings against the
// opposite side until the book is no longer crossed.
func (s *Simulation) matchLimit(eh engineHandle, ph portfolioHandle, rec *assetRecord, bk *book.OrderBook, o *domain.LimitOrder, txByOrder map[domain.OrderID]float32, txs *[]domain.Transaction) error {
	if bk.IsCrossed() {
		return domain.ErrInvariantViolation
	}

	resting := &book.RestingOrder{UserID: o.UserID, OrderID: o.OrderID, Side: o.Side, Price: o.Price, Volume: o.Volume}
	if !bk.Insert(resting) {
		return domain.ErrInvariantViolation
	}

	for {
		tb, okBid := bk.TopBid()
		ta, okAsk := bk.TopAsk()
		if !okBid || !okAsk || tb.Price < ta.Price {
			break
		}

		var execPrice float32
		if o.Side == domain.Bid {
			execPrice = ta.Price
		} else {
			execPrice = tb.Price
		}

		volume := tb.Volume
		if ta.Volume < volume {
			volume = ta.Volume
		}

		tb.Volume -= volume
		ta.Volume -= volume
		txByOrder[tb.OrderID] += volume
		txByOrder[ta.OrderID] += volume

		if tb.Volume == 0 {
			bk.PopTopBid()
		}
		if ta.Volume == 0 {
			bk.PopTopAsk()
		}

		s.recordTransaction(eh, ph, rec, tb.UserID, ta.UserID, execPrice, volume, txs)
	}

	if bk.IsCrossed() {
		return domain.ErrInvariantViolation
	}
	return nil
}

// matchMarket walks the opposite side until remaining volume is exhausted
// or liquidity runs out; unfilled remainder is silently truncated.
func (s *Simulation) matchMarket(eh engineHandle, ph portfolioHandle, rec *assetRecord, bk *book.OrderBook, o *domain.MarketOrder, txByOrder map[domain.OrderID]float32, txs *[]domain.Transaction) {
	remaining := o.Volume

	for remaining > 0 {
		if o.Side == domain.Buy {
			ta, ok := bk.TopAsk()
			if !ok {
				break
			}
			volume := remaining
			if ta.Volume < volume {
				volume = ta.Volume
			}
			execPrice := ta.Price

			ta.Volume -= volume
			txByOrder[ta.OrderID] += volume
			if ta.Volume == 0 {
				bk.PopTopAsk()
			}
			remaining -= volume
			txByOrder[o.OrderID] += volume

			s.recordTransaction(eh, ph, rec, o.UserID, ta.UserID, execPrice, volume, txs)
		} else {
			tb, ok := bk.TopBid()
			if !ok {
				break
			}
			volume := remaining
			if tb.Volume < volume {
				volume = tb.Volume
			}
			execPrice := tb.Price

			tb.Volume -= volume
			txByOrder[tb.OrderID] += volume
			if tb.Volume == 0 {
				bk.PopTopBid()
			}
			remaining -= volume
			txByOrder[o.OrderID] += volume

			s.recordTransaction(eh, ph, rec, tb.UserID, o.UserID, execPrice, volume, txs)
		}
	}
}

// recordTransaction assigns a transaction id, appends it, records the
// FIFO lot consequences, and invokes the asset's trade callback, which is
// what actually moves the traded asset and its denominated currency.
func (s *Simulation) recordTransaction(eh engineHandle, ph portfolioHandle, rec *assetRecord, buyer, seller domain.UserID, price, volume float32, txs *[]domain.Transaction) {
	txID := domain.TransactionID(s.transactionCounter.Add(1) - 1)
	tx := domain.Transaction{
		ID:           txID,
		Step:         s.step,
		AssetID:      rec.id,
		BuyerUserID:  buyer,
		SellerUserID: seller,
		Price:        price,
		Volume:       volume,
	}

	s.portfolio.RecordFill(buyer, seller, rec.id, price, volume)
	rec.behavior.OnTradeExecuted(eh, ph, buyer, seller, price, volume)

	s.lastTradeMu.Lock()
	s.lastTrade[rec.id] = price
	s.lastTradeMu.Unlock()

	*txs = append(*txs, tx)
}

// buildBookSnapshots fans the read-only depth/flatten snapshot stage out
// across assets, since matching for the step has already finished and
// each asset's book is independent. Results are merged back into
// per-asset-id maps, so the concurrency does not affect determinism.
func (s *Simulation) buildBookSnapshots(assets []*assetRecord) (map[domain.AssetID]book.Depth, map[domain.AssetID]book.Flat) {
	depth := make(map[domain.AssetID]book.Depth)
	flat := make(map[domain.AssetID]book.Flat)
	var mu sync.Mutex

	var g errgroup.Group
	for _, rec := range assets {
		rec := rec
		bk, ok := s.books[rec.id]
		if !ok {
			continue
		}
		g.Go(func() error {
			d := bk.Depth()
			f := bk.Flatten()
			mu.Lock()
			depth[rec.id] = d
			flat[rec.id] = f
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return depth, flat
}

// computeStatistics builds the per-(user, asset) trading statistics rows
// for every tradeable asset.
func (s *Simulation) computeStatistics(assets []*assetRecord) map[domain.AssetID]map[domain.UserID]Statistics {
	markPrices := make(map[domain.AssetID]float32, len(assets))
	for _, rec := range assets {
		if !rec.tradeable {
			continue
		}
		markPrices[rec.id] = s.markPrice(rec.id)
	}

	users := s.portfolio.UserIDs()
	out := make(map[domain.AssetID]map[domain.UserID]Statistics)

	for _, rec := range assets {
		if !rec.tradeable {
			continue
		}
		mark := markPrices[rec.id]
		rows := make(map[domain.UserID]Statistics, len(users))

		for _, u := range users {
			position := s.portfolio.Balance(u, rec.id)
			cost, vwap, _ := s.portfolio.CostAndVWAP(u, rec.id)
			realized, _ := s.portfolio.Realized(u, rec.id)
			unrealized := position*mark - cost

			nlv := s.portfolio.Balance(u, rec.denominatedID)
			for _, other := range assets {
				if !other.tradeable {
					continue
				}
				nlv += s.portfolio.Balance(u, other.id) * markPrices[other.id]
			}

			rows[u] = Statistics{
				Position:            position,
				Cost:                cost,
				VWAP:                vwap,
				Realized:            realized,
				Unrealized:          unrealized,
				NetLiquidationValue: nlv,
			}
		}
		out[rec.id] = rows
	}
	return out
}

// markPrice is mid-price when both sides exist, else the one side that
// does, else the last transacted price, else 0.
func (s *Simulation) markPrice(assetID domain.AssetID) float32 {
	bk, ok := s.books[assetID]
	if !ok {
		return 0
	}
	tb, okBid := bk.TopBid()
	ta, okAsk := bk.TopAsk()
	switch {
	case okBid && okAsk:
		return (tb.Price + ta.Price) / 2
	case okBid:
		return tb.Price
	case okAsk:
		return ta.Price
	}
	s.lastTradeMu.RLock()
	defer s.lastTradeMu.RUnlock()
	return s.lastTrade[assetID]
}
