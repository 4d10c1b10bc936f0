package asset

import "github.com/efreitasn/marketsim/internal/domain"

// Currency is the non-tradeable cash asset every tradeable asset is
// denominated in. All callbacks are no-ops.
type Currency struct {
	ticker string
}

// NewCurrency creates a non-tradeable currency with the given ticker.
func NewCurrency(ticker string) *Currency {
	return &Currency{ticker: ticker}
}

func (c *Currency) IsTradeable() bool     { return false }
func (c *Currency) Ticker() string        { return c.ticker }
func (c *Currency) DenominatedIn() string { return "" }

func (c *Currency) OnSimulationStart(EngineHandle, PortfolioHandle) {}
func (c *Currency) BeforeStep(EngineHandle, PortfolioHandle)        {}
func (c *Currency) OnTradeExecuted(EngineHandle, PortfolioHandle, domain.UserID, domain.UserID, float32, float32) {
}
func (c *Currency) AfterStep(EngineHandle, PortfolioHandle)     {}
func (c *Currency) OnSimulationEnd(EngineHandle, PortfolioHandle) {}
