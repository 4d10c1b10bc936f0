package simulation

import (
	"testing"

	"github.com/efreitasn/marketsim/internal/asset"
	"github.com/efreitasn/marketsim/internal/domain"
)

func newTestSim(t *testing.T) (*Simulation, domain.AssetID, domain.AssetID, domain.UserID, domain.UserID) {
	t.Helper()
	sim := New(1.0, 10.0, 10)

	cashID, err := sim.RegisterAsset(false, "", asset.NewCurrency("USD"))
	if err != nil {
		t.Fatalf("register currency: %v", err)
	}
	stockID, err := sim.RegisterAsset(true, "USD", asset.NewStock("ACME", "USD"))
	if err != nil {
		t.Fatalf("register stock: %v", err)
	}

	alice := sim.AddUser("alice")
	bob := sim.AddUser("bob")
	return sim, cashID, stockID, alice, bob
}

func TestExactPriceMatch(t *testing.T) {
	sim, _, stockID, alice, bob := newTestSim(t)

	if _, err := sim.SubmitLimitOrder(alice, stockID, domain.Buy, 100, 10); err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	if _, err := sim.SubmitLimitOrder(bob, stockID, domain.Sell, 100, 10); err != nil {
		t.Fatalf("submit sell: %v", err)
	}

	res, err := sim.ProcessStep()
	if err != nil {
		t.Fatalf("process step: %v", err)
	}

	txs := res.Transactions[stockID]
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Price != 100 || txs[0].Volume != 10 {
		t.Fatalf("unexpected transaction: %+v", txs[0])
	}

	bidCount, err := sim.GetBidCount(stockID)
	if err != nil {
		t.Fatalf("get bid count: %v", err)
	}
	askCount, err := sim.GetAskCount(stockID)
	if err != nil {
		t.Fatalf("get ask count: %v", err)
	}
	if bidCount != 0 || askCount != 0 {
		t.Fatalf("expected empty book after exact match, bids=%d asks=%d", bidCount, askCount)
	}
}

func TestPartialFillLeavesRemainder(t *testing.T) {
	sim, _, stockID, alice, bob := newTestSim(t)

	if _, err := sim.SubmitLimitOrder(alice, stockID, domain.Buy, 100, 15); err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	if _, err := sim.SubmitLimitOrder(bob, stockID, domain.Sell, 100, 10); err != nil {
		t.Fatalf("submit sell: %v", err)
	}

	res, err := sim.ProcessStep()
	if err != nil {
		t.Fatalf("process step: %v", err)
	}

	txs := res.Transactions[stockID]
	if len(txs) != 1 || txs[0].Volume != 10 {
		t.Fatalf("unexpected transactions: %+v", txs)
	}

	top, err := sim.GetTopBid(stockID)
	if err != nil {
		t.Fatalf("get top bid: %v", err)
	}
	if top.Volume != 5 {
		t.Fatalf("expected 5 remaining on bid, got %v", top.Volume)
	}
}

func TestMarketOrderInsufficientLiquidityTruncates(t *testing.T) {
	sim, _, stockID, alice, bob := newTestSim(t)

	if _, err := sim.SubmitLimitOrder(alice, stockID, domain.Sell, 100, 5); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	if _, err := sim.SubmitMarketOrder(bob, stockID, domain.Buy, 20); err != nil {
		t.Fatalf("submit market buy: %v", err)
	}

	res, err := sim.ProcessStep()
	if err != nil {
		t.Fatalf("process step: %v", err)
	}

	txs := res.Transactions[stockID]
	if len(txs) != 1 || txs[0].Volume != 5 {
		t.Fatalf("expected single 5-volume fill, got %+v", txs)
	}

	askCount, _ := sim.GetAskCount(stockID)
	if askCount != 0 {
		t.Fatalf("expected ask side drained, got %d", askCount)
	}
}

func TestCancelUnknownOrderIsNoOp(t *testing.T) {
	sim, _, stockID, alice, _ := newTestSim(t)

	if err := sim.SubmitCancelOrder(alice, stockID, 999); err != nil {
		t.Fatalf("submit cancel: %v", err)
	}

	if _, err := sim.ProcessStep(); err != nil {
		t.Fatalf("process step: %v", err)
	}
}

func TestSubmitToNonTradeableAssetIsRejected(t *testing.T) {
	sim, cashID, _, alice, _ := newTestSim(t)

	if _, err := sim.SubmitLimitOrder(alice, cashID, domain.Buy, 1, 1); err == nil {
		t.Fatal("expected error submitting order against non-tradeable asset")
	}
}

func TestSubmitCancelRoundTripLeavesBookUnchanged(t *testing.T) {
	sim, _, stockID, alice, _ := newTestSim(t)

	orderID, err := sim.SubmitLimitOrder(alice, stockID, domain.Buy, 50, 3)
	if err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	if err := sim.SubmitCancelOrder(alice, stockID, orderID); err != nil {
		t.Fatalf("submit cancel: %v", err)
	}

	if _, err := sim.ProcessStep(); err != nil {
		t.Fatalf("process step: %v", err)
	}

	bidCount, _ := sim.GetBidCount(stockID)
	if bidCount != 0 {
		t.Fatalf("expected book empty after submit+cancel round trip, got %d bids", bidCount)
	}
}

func TestEndOfSimulationLiquidatesStockHoldings(t *testing.T) {
	sim := New(1.0, 2.0, 2)
	_, err := sim.RegisterAsset(false, "", asset.NewCurrency("USD"))
	if err != nil {
		t.Fatalf("register currency: %v", err)
	}
	stockID, err := sim.RegisterAsset(true, "USD", asset.NewStock("ACME", "USD"))
	if err != nil {
		t.Fatalf("register stock: %v", err)
	}
	alice := sim.AddUser("alice")
	bob := sim.AddUser("bob")

	if _, err := sim.SubmitLimitOrder(alice, stockID, domain.Buy, 100, 10); err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	if _, err := sim.SubmitLimitOrder(bob, stockID, domain.Sell, 100, 10); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	if _, err := sim.ProcessStep(); err != nil {
		t.Fatalf("process step 1: %v", err)
	}

	res, err := sim.ProcessStep()
	if err != nil {
		t.Fatalf("process step 2: %v", err)
	}
	if res.HasNextStep {
		t.Fatal("expected simulation to have ended")
	}

	stockBalance := sim.portfolio.Balance(alice, stockID)
	if stockBalance != 0 {
		t.Fatalf("expected stock position liquidated at end, got %v", stockBalance)
	}
}

func TestProcessStepAfterSimulationEndedErrors(t *testing.T) {
	sim := New(1.0, 1.0, 1)
	if _, err := sim.RegisterAsset(false, "", asset.NewCurrency("USD")); err != nil {
		t.Fatalf("register currency: %v", err)
	}

	if _, err := sim.ProcessStep(); err != nil {
		t.Fatalf("process step: %v", err)
	}

	if _, err := sim.ProcessStep(); err != domain.ErrSimulationEnded {
		t.Fatalf("expected ErrSimulationEnded, got %v", err)
	}
}

func TestResetSimulationClearsBooksAndPortfolios(t *testing.T) {
	sim, _, stockID, alice, bob := newTestSim(t)

	if _, err := sim.SubmitLimitOrder(alice, stockID, domain.Buy, 100, 10); err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	if _, err := sim.SubmitLimitOrder(bob, stockID, domain.Sell, 100, 10); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	if _, err := sim.ProcessStep(); err != nil {
		t.Fatalf("process step: %v", err)
	}

	sim.ResetSimulation()

	if sim.CurrentStep() != 0 {
		t.Fatalf("expected step counter reset, got %d", sim.CurrentStep())
	}
	bidCount, _ := sim.GetBidCount(stockID)
	askCount, _ := sim.GetAskCount(stockID)
	if bidCount != 0 || askCount != 0 {
		t.Fatalf("expected books cleared on reset, bids=%d asks=%d", bidCount, askCount)
	}
	if sim.portfolio.Balance(alice, stockID) != 0 {
		t.Fatal("expected portfolio reset to zero")
	}
}
