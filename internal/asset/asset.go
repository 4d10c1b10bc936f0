// Package asset defines the tradeable/non-tradeable plug-in protocol and
// the generic reference behaviors (Currency, Bond, Stock, Index).
package asset

import "github.com/efreitasn/marketsim/internal/domain"

// EngineHandle is the read-only view of the simulation passed to asset
// callbacks: ticker/id resolution, current step, and top-of-book queries.
// It never exposes mutation — that happens only through PortfolioHandle.
type EngineHandle interface {
	Step() domain.Step
	Dt() float32
	AssetID(ticker string) (domain.AssetID, bool)
	Ticker(id domain.AssetID) (string, bool)
	TopBid(asset domain.AssetID) (price, volume float32, ok bool)
	TopAsk(asset domain.AssetID) (price, volume float32, ok bool)
	LastTradePrice(asset domain.AssetID) (float32, bool)
}

// PortfolioHandle is the mutation surface asset callbacks use to move
// holdings. It mirrors the public PortfolioManager operations; assets
// never see the lock internals.
type PortfolioHandle interface {
	Add(u domain.UserID, a domain.AssetID, delta float32) (float32, error)
	AddTwo(u domain.UserID, a1 domain.AssetID, d1 float32, a2 domain.AssetID, d2 float32) (float32, float32, error)
	MulAdd(u domain.UserID, src, dst domain.AssetID, k float32) (float32, error)
	MulAddAndSet(u domain.UserID, src, dst domain.AssetID, k, v float32) (float32, error)
	Balance(u domain.UserID, a domain.AssetID) float32
	UserIDs() []domain.UserID
}

// Asset is the capability set every registered asset implements. Hooks
// are called synchronously by the simulation's step pipeline and must not
// submit new orders or reenter the engine.
type Asset interface {
	IsTradeable() bool
	Ticker() string
	DenominatedIn() string

	OnSimulationStart(h EngineHandle, p PortfolioHandle)
	BeforeStep(h EngineHandle, p PortfolioHandle)
	OnTradeExecuted(h EngineHandle, p PortfolioHandle, buyer, seller domain.UserID, price, volume float32)
	AfterStep(h EngineHandle, p PortfolioHandle)
	OnSimulationEnd(h EngineHandle, p PortfolioHandle)
}
