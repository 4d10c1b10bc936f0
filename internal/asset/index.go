package asset

import (
	"sync"

	"github.com/efreitasn/marketsim/internal/domain"
)

// Index is a non-tradeable reference asset that tracks a weighted basket
// of tradeable tickers. Weights are fixed at construction — an index
// level must not depend on any one user's holdings — so AfterStep is the
// only hook that does anything: it recomputes Level() from the basket
// members' current mark prices.
type Index struct {
	ticker  string
	weights map[string]float32 // basket ticker -> weight

	mu    sync.RWMutex
	level float32
}

// NewIndex creates a non-tradeable index over the given ticker->weight
// basket. Weights need not sum to 1; the level is their weighted average.
func NewIndex(ticker string, weights map[string]float32) *Index {
	cp := make(map[string]float32, len(weights))
	for k, v := range weights {
		cp[k] = v
	}
	return &Index{ticker: ticker, weights: cp}
}

func (i *Index) IsTradeable() bool     { return false }
func (i *Index) Ticker() string        { return i.ticker }
func (i *Index) DenominatedIn() string { return "" }

func (i *Index) OnSimulationStart(EngineHandle, PortfolioHandle) {}
func (i *Index) BeforeStep(EngineHandle, PortfolioHandle)        {}
func (i *Index) OnTradeExecuted(EngineHandle, PortfolioHandle, domain.UserID, domain.UserID, float32, float32) {
}
func (i *Index) OnSimulationEnd(EngineHandle, PortfolioHandle) {}

// Level returns the most recently computed index level. Zero before the
// first AfterStep call.
func (i *Index) Level() float32 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.level
}

// AfterStep recomputes the weighted average of every basket member's
// mark price. A basket member with no quotes on either side and no prior
// trade contributes 0 for that step rather than stalling the whole index.
func (i *Index) AfterStep(h EngineHandle, p PortfolioHandle) {
	var weightedSum, totalWeight float32
	for ticker, weight := range i.weights {
		assetID, ok := h.AssetID(ticker)
		if !ok {
			continue
		}
		weightedSum += markPrice(h, assetID) * weight
		totalWeight += weight
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if totalWeight == 0 {
		i.level = 0
		return
	}
	i.level = weightedSum / totalWeight
}

// markPrice mirrors the mark-price convention used for per-user
// statistics in the step pipeline: mid-price when both sides exist, else
// the one side that does, else the last trade, else 0.
func markPrice(h EngineHandle, assetID domain.AssetID) float32 {
	bid, _, hasBid := h.TopBid(assetID)
	ask, _, hasAsk := h.TopAsk(assetID)
	switch {
	case hasBid && hasAsk:
		return (bid + ask) / 2
	case hasBid:
		return bid
	case hasAsk:
		return ask
	}
	if last, ok := h.LastTradePrice(assetID); ok {
		return last
	}
	return 0
}
