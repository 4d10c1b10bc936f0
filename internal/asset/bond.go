package asset

import "github.com/efreitasn/marketsim/internal/domain"

// Bond is a tradeable asset that accrues a coupon every step and
// liquidates to currency at face value when the simulation ends.
type Bond struct {
	ticker        string
	denominatedIn string
	rate          float32
	faceValue     float32
}

// NewBond creates a bond paying rate*faceValue*dt per step to every
// holder, denominated in the given currency ticker.
func NewBond(ticker, denominatedIn string, rate, faceValue float32) *Bond {
	return &Bond{ticker: ticker, denominatedIn: denominatedIn, rate: rate, faceValue: faceValue}
}

func (b *Bond) IsTradeable() bool     { return true }
func (b *Bond) Ticker() string        { return b.ticker }
func (b *Bond) DenominatedIn() string { return b.denominatedIn }

func (b *Bond) OnSimulationStart(EngineHandle, PortfolioHandle) {}
func (b *Bond) BeforeStep(EngineHandle, PortfolioHandle)        {}

// OnTradeExecuted exchanges volume of bond against price*volume of
// currency: the buyer gains bond and pays currency, the seller the
// opposite.
func (b *Bond) OnTradeExecuted(h EngineHandle, p PortfolioHandle, buyer, seller domain.UserID, price, volume float32) {
	bondID, _ := h.AssetID(b.ticker)
	cashID, _ := h.AssetID(b.denominatedIn)
	notional := price * volume

	p.AddTwo(buyer, bondID, volume, cashID, -notional)
	p.AddTwo(seller, bondID, -volume, cashID, notional)
}

// AfterStep pays every holder rate*faceValue*dt per bond held.
func (b *Bond) AfterStep(h EngineHandle, p PortfolioHandle) {
	bondID, ok := h.AssetID(b.ticker)
	if !ok {
		return
	}
	cashID, ok := h.AssetID(b.denominatedIn)
	if !ok {
		return
	}
	coupon := b.rate * b.faceValue * h.Dt()

	for _, u := range p.UserIDs() {
		if p.Balance(u, bondID) == 0 {
			continue
		}
		p.MulAdd(u, bondID, cashID, coupon)
	}
}

// OnSimulationEnd converts every remaining bond holding to currency at
// face value, zeroing the bond position.
func (b *Bond) OnSimulationEnd(h EngineHandle, p PortfolioHandle) {
	bondID, ok := h.AssetID(b.ticker)
	if !ok {
		return
	}
	cashID, ok := h.AssetID(b.denominatedIn)
	if !ok {
		return
	}
	for _, u := range p.UserIDs() {
		p.MulAddAndSet(u, bondID, cashID, b.faceValue, 0)
	}
}
