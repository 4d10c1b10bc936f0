package simulation

import "github.com/efreitasn/marketsim/internal/domain"

// engineHandle adapts *Simulation to asset.EngineHandle: read-only
// queries only, no mutation surface.
type engineHandle struct {
	s *Simulation
}

// Step reads the counter directly: callbacks run on the stepping thread,
// which already holds stepMu, so taking it again would deadlock.
func (h engineHandle) Step() domain.Step { return h.s.step }
func (h engineHandle) Dt() float32       { return h.s.dt }

func (h engineHandle) AssetID(ticker string) (domain.AssetID, bool) {
	h.s.assetsMu.RLock()
	defer h.s.assetsMu.RUnlock()
	id, ok := h.s.tickerToID[ticker]
	return id, ok
}

func (h engineHandle) Ticker(id domain.AssetID) (string, bool) {
	rec, ok := h.s.assetByID(id)
	if !ok {
		return "", false
	}
	return rec.ticker, true
}

func (h engineHandle) TopBid(assetID domain.AssetID) (float32, float32, bool) {
	bk, ok := h.s.books[assetID]
	if !ok {
		return 0, 0, false
	}
	order, ok := bk.TopBid()
	if !ok {
		return 0, 0, false
	}
	return order.Price, order.Volume, true
}

func (h engineHandle) TopAsk(assetID domain.AssetID) (float32, float32, bool) {
	bk, ok := h.s.books[assetID]
	if !ok {
		return 0, 0, false
	}
	order, ok := bk.TopAsk()
	if !ok {
		return 0, 0, false
	}
	return order.Price, order.Volume, true
}

func (h engineHandle) LastTradePrice(assetID domain.AssetID) (float32, bool) {
	h.s.lastTradeMu.RLock()
	defer h.s.lastTradeMu.RUnlock()
	p, ok := h.s.lastTrade[assetID]
	return p, ok
}

// portfolioHandle adapts *Simulation's portfolio manager to
// asset.PortfolioHandle.
type portfolioHandle struct {
	s *Simulation
}

func (h portfolioHandle) Add(u domain.UserID, a domain.AssetID, delta float32) (float32, error) {
	return h.s.portfolio.Add(u, a, delta)
}

func (h portfolioHandle) AddTwo(u domain.UserID, a1 domain.AssetID, d1 float32, a2 domain.AssetID, d2 float32) (float32, float32, error) {
	return h.s.portfolio.AddTwo(u, a1, d1, a2, d2)
}

func (h portfolioHandle) MulAdd(u domain.UserID, src, dst domain.AssetID, k float32) (float32, error) {
	return h.s.portfolio.MulAdd(u, src, dst, k)
}

func (h portfolioHandle) MulAddAndSet(u domain.UserID, src, dst domain.AssetID, k, v float32) (float32, error) {
	return h.s.portfolio.MulAddAndSet(u, src, dst, k, v)
}

func (h portfolioHandle) Balance(u domain.UserID, a domain.AssetID) float32 {
	return h.s.portfolio.Balance(u, a)
}

func (h portfolioHandle) UserIDs() []domain.UserID {
	return h.s.portfolio.UserIDs()
}
