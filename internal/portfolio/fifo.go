package portfolio

import (
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/shopspring/decimal"
)

// RecordFill records the FIFO lot consequences of one transaction: the
// buyer gets a BUY stub, the seller a SELL stub. Same-side stubs
// concatenate at the queue tail; opposite-side stubs cancel against the
// head until one side is exhausted, realizing P&L as they do.
//
// Position movement itself (debiting/crediting the traded asset and its
// denominated currency) is not done here — that is the asset's own
// on_trade_executed callback, so a non-tradeable asset never reaches this
// path and a tradeable asset's settlement convention stays pluggable.
func (m *Manager) RecordFill(buyer, seller domain.UserID, asset domain.AssetID, price, volume float32) error {
	rb, okB := m.getRow(buyer)
	rs, okS := m.getRow(seller)
	if !okB || !okS {
		return domain.ErrUnknownID
	}

	if buyer == seller {
		rb.mu.Lock()
		appendStub(rb, asset, domain.Buy, price, volume)
		appendStub(rb, asset, domain.Sell, price, volume)
		rb.mu.Unlock()
		return nil
	}

	first, second := rb, rs
	if buyer > seller {
		first, second = rs, rb
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	appendStub(rb, asset, domain.Buy, price, volume)
	appendStub(rs, asset, domain.Sell, price, volume)
	return nil
}

// appendStub pushes (side, price, volume) onto the asset's FIFO queue,
// resolving it against opposite-side stubs at the head first. Caller must
// hold r.mu.
func appendStub(r *row, asset domain.AssetID, side domain.OrderSide, price, volume float32) {
	queue := r.fifo[asset]
	remaining := volume

	for remaining > 0 {
		if len(queue) == 0 || queue[0].Side == side {
			queue = append(queue, domain.TransactionStub{Side: side, RemainingVolume: remaining, Price: price})
			remaining = 0
			break
		}

		front := &queue[0]
		resolved := remaining
		if front.RemainingVolume < resolved {
			resolved = front.RemainingVolume
		}

		var sellPrice, buyPrice float32
		if front.Side == domain.Sell {
			sellPrice, buyPrice = front.Price, price
		} else {
			sellPrice, buyPrice = price, front.Price
		}
		r.realized[asset] += float64(sellPrice-buyPrice) * float64(resolved)

		front.RemainingVolume -= resolved
		remaining -= resolved
		if front.RemainingVolume == 0 {
			queue = queue[1:]
		}
	}

	r.fifo[asset] = queue
}

// CostAndVWAP returns (Σ price·volume, Σ price·volume / Σ volume) over the
// current FIFO queue for (u, a). VWAP is 0 when the queue is empty. The
// accumulation runs through decimal.Decimal internally so a long-running
// queue doesn't drift under repeated float64 rounding; the result is cast
// back to float32 at the boundary, since the public portfolio type stays
// f32 per the data model.
func (m *Manager) CostAndVWAP(u domain.UserID, a domain.AssetID) (cost, vwap float32, err error) {
	r, ok := m.getRow(u)
	if !ok {
		return 0, 0, domain.ErrUnknownID
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sumCost := decimal.Zero
	sumVolume := decimal.Zero
	for _, stub := range r.fifo[a] {
		p := decimal.NewFromFloat(float64(stub.Price))
		v := decimal.NewFromFloat(float64(stub.RemainingVolume))
		sumCost = sumCost.Add(p.Mul(v))
		sumVolume = sumVolume.Add(v)
	}

	costF, _ := sumCost.Float64()
	cost = float32(costF)
	if sumVolume.IsZero() {
		return cost, 0, nil
	}
	vwapDec := sumCost.Div(sumVolume)
	vwapF, _ := vwapDec.Float64()
	return cost, float32(vwapF), nil
}

// Realized returns the P&L accumulated from closed FIFO pairs for (u, a).
func (m *Manager) Realized(u domain.UserID, a domain.AssetID) (float32, error) {
	r, ok := m.getRow(u)
	if !ok {
		return 0, domain.ErrUnknownID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return float32(r.realized[a]), nil
}

// FIFOSide reports which side's stubs currently occupy the queue, and
// whether the queue is single-sided. An empty queue is trivially
// single-sided.
func (m *Manager) FIFOSide(u domain.UserID, a domain.AssetID) (side domain.OrderSide, singleSided bool, err error) {
	r, ok := m.getRow(u)
	if !ok {
		return 0, false, domain.ErrUnknownID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.fifo[a]
	if len(queue) == 0 {
		return 0, true, nil
	}
	side = queue[0].Side
	for _, stub := range queue {
		if stub.Side != side {
			return side, false, nil
		}
	}
	return side, true, nil
}
