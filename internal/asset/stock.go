package asset

import "github.com/efreitasn/marketsim/internal/domain"

// Stock is a tradeable asset with no periodic accrual; at simulation end
// remaining holdings are liquidated at the mid-price.
type Stock struct {
	ticker        string
	denominatedIn string
}

// NewStock creates a stock denominated in the given currency ticker.
func NewStock(ticker, denominatedIn string) *Stock {
	return &Stock{ticker: ticker, denominatedIn: denominatedIn}
}

func (s *Stock) IsTradeable() bool     { return true }
func (s *Stock) Ticker() string        { return s.ticker }
func (s *Stock) DenominatedIn() string { return s.denominatedIn }

func (s *Stock) OnSimulationStart(EngineHandle, PortfolioHandle) {}
func (s *Stock) BeforeStep(EngineHandle, PortfolioHandle)        {}

// OnTradeExecuted is identical to Bond's trade handler: volume of stock
// against price*volume of currency.
func (s *Stock) OnTradeExecuted(h EngineHandle, p PortfolioHandle, buyer, seller domain.UserID, price, volume float32) {
	stockID, _ := h.AssetID(s.ticker)
	cashID, _ := h.AssetID(s.denominatedIn)
	notional := price * volume

	p.AddTwo(buyer, stockID, volume, cashID, -notional)
	p.AddTwo(seller, stockID, -volume, cashID, notional)
}

func (s *Stock) AfterStep(EngineHandle, PortfolioHandle) {}

// OnSimulationEnd converts every holder's stock position to currency at
// the mid-price, defaulting either side to 100.0 when the book is empty
// on that side.
func (s *Stock) OnSimulationEnd(h EngineHandle, p PortfolioHandle) {
	stockID, ok := h.AssetID(s.ticker)
	if !ok {
		return
	}
	cashID, ok := h.AssetID(s.denominatedIn)
	if !ok {
		return
	}

	bidPrice, _, hasBid := h.TopBid(stockID)
	if !hasBid {
		bidPrice = 100.0
	}
	askPrice, _, hasAsk := h.TopAsk(stockID)
	if !hasAsk {
		askPrice = 100.0
	}
	mid := (bidPrice + askPrice) / 2

	for _, u := range p.UserIDs() {
		p.MulAddAndSet(u, stockID, cashID, mid, 0)
	}
}
