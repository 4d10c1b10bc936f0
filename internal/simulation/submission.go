package simulation

import "github.com/efreitasn/marketsim/internal/domain"

// SubmitLimitOrder validates user_id and asset_id, allocates a fresh
// order_id, and appends to the asset's pending queue. It does not touch
// the book; safe to call concurrently with other submissions and while a
// step is in flight.
func (s *Simulation) SubmitLimitOrder(userID domain.UserID, assetID domain.AssetID, side domain.OrderSide, price, volume float32) (domain.OrderID, error) {
	if err := s.validateSubmission(userID, assetID); err != nil {
		return 0, err
	}
	if price <= 0 || volume <= 0 {
		return 0, domain.NewValidationError("price and volume must be positive")
	}

	orderID := s.nextOrderID()
	order := &domain.LimitOrder{UserID: userID, OrderID: orderID, Side: side, Price: price, Volume: volume}
	s.enqueue(assetID, order)
	return orderID, nil
}

// SubmitCancelOrder validates user_id and asset_id and enqueues a cancel
// request. The referenced order may already be filled, cancelled, or
// unknown; that is resolved as a no-op when the cancel is processed.
func (s *Simulation) SubmitCancelOrder(userID domain.UserID, assetID domain.AssetID, orderIDToCancel domain.OrderID) error {
	if err := s.validateSubmission(userID, assetID); err != nil {
		return err
	}
	s.enqueue(assetID, &domain.CancelOrder{UserID: userID, OrderIDToCancel: orderIDToCancel})
	return nil
}

// SubmitMarketOrder validates user_id and asset_id, allocates a fresh
// order_id, and enqueues a market order that will be consumed entirely
// (or truncated) within the step that processes it.
func (s *Simulation) SubmitMarketOrder(userID domain.UserID, assetID domain.AssetID, side domain.OrderSide, volume float32) (domain.OrderID, error) {
	if err := s.validateSubmission(userID, assetID); err != nil {
		return 0, err
	}
	if volume <= 0 {
		return 0, domain.NewValidationError("volume must be positive")
	}

	orderID := s.nextOrderID()
	order := &domain.MarketOrder{UserID: userID, OrderID: orderID, Side: side, Volume: volume}
	s.enqueue(assetID, order)
	return orderID, nil
}

func (s *Simulation) validateSubmission(userID domain.UserID, assetID domain.AssetID) error {
	if !s.userExists(userID) {
		return domain.ErrUnknownID
	}
	rec, ok := s.assetByID(assetID)
	if !ok {
		return domain.ErrUnknownID
	}
	if !rec.tradeable {
		return domain.NewValidationError("asset is not tradeable")
	}
	return nil
}

func (s *Simulation) nextOrderID() domain.OrderID {
	return domain.OrderID(s.orderCounter.Add(1) - 1)
}

func (s *Simulation) enqueue(assetID domain.AssetID, order any) {
	s.assetsMu.RLock()
	pq := s.pending[assetID]
	s.assetsMu.RUnlock()

	pq.mu.Lock()
	pq.orders = append(pq.orders, order)
	pq.mu.Unlock()
}
