package simulation

import (
	"github.com/efreitasn/marketsim/internal/book"
	"github.com/efreitasn/marketsim/internal/domain"
)

// GetTopBid returns the highest-priority bid for an asset.
func (s *Simulation) GetTopBid(assetID domain.AssetID) (*book.RestingOrder, error) {
	bk, ok := s.books[assetID]
	if !ok {
		return nil, domain.ErrUnknownID
	}
	bk.RLock()
	defer bk.RUnlock()
	order, ok := bk.TopBid()
	if !ok {
		return nil, domain.ErrBookEmpty
	}
	cp := *order
	return &cp, nil
}

// GetTopAsk returns the highest-priority ask for an asset.
func (s *Simulation) GetTopAsk(assetID domain.AssetID) (*book.RestingOrder, error) {
	bk, ok := s.books[assetID]
	if !ok {
		return nil, domain.ErrUnknownID
	}
	bk.RLock()
	defer bk.RUnlock()
	order, ok := bk.TopAsk()
	if !ok {
		return nil, domain.ErrBookEmpty
	}
	cp := *order
	return &cp, nil
}

// GetBidCount returns the number of resting bids for an asset.
func (s *Simulation) GetBidCount(assetID domain.AssetID) (int, error) {
	bk, ok := s.books[assetID]
	if !ok {
		return 0, domain.ErrUnknownID
	}
	bk.RLock()
	defer bk.RUnlock()
	return bk.BidCount(), nil
}

// GetAskCount returns the number of resting asks for an asset.
func (s *Simulation) GetAskCount(assetID domain.AssetID) (int, error) {
	bk, ok := s.books[assetID]
	if !ok {
		return 0, domain.ErrUnknownID
	}
	bk.RLock()
	defer bk.RUnlock()
	return bk.AskCount(), nil
}

// GetOrderBook returns the flattened bid/ask sequences in priority order.
func (s *Simulation) GetOrderBook(assetID domain.AssetID) (book.Flat, error) {
	bk, ok := s.books[assetID]
	if !ok {
		return book.Flat{}, domain.ErrUnknownID
	}
	bk.RLock()
	defer bk.RUnlock()
	return bk.Flatten(), nil
}

// GetCumulativeBookDepth returns the cumulative depth snapshot.
func (s *Simulation) GetCumulativeBookDepth(assetID domain.AssetID) (book.Depth, error) {
	bk, ok := s.books[assetID]
	if !ok {
		return book.Depth{}, domain.ErrUnknownID
	}
	bk.RLock()
	defer bk.RUnlock()
	return bk.Depth(), nil
}

// GetAllOpenUserOrders returns the set of order ids a user has resting on
// an asset's book.
func (s *Simulation) GetAllOpenUserOrders(userID domain.UserID, assetID domain.AssetID) (map[domain.OrderID]struct{}, error) {
	if !s.userExists(userID) {
		return nil, domain.ErrUnknownID
	}
	bk, ok := s.books[assetID]
	if !ok {
		return nil, domain.ErrUnknownID
	}
	bk.RLock()
	defer bk.RUnlock()
	return bk.OrdersOfUser(userID), nil
}

// GetUserPortfolio returns a user's full (asset_id -> balance) row.
func (s *Simulation) GetUserPortfolio(userID domain.UserID) (map[domain.AssetID]float32, error) {
	if !s.userExists(userID) {
		return nil, domain.ErrUnknownID
	}
	table := s.portfolio.SnapshotTable()
	return table[userID], nil
}

// GetAllTickers returns every registered ticker in registration order.
func (s *Simulation) GetAllTickers() []string {
	s.assetsMu.RLock()
	defer s.assetsMu.RUnlock()
	tickers := make([]string, len(s.assets))
	for i, rec := range s.assets {
		tickers[i] = rec.ticker
	}
	return tickers
}

// GetSecurityTicker resolves an asset id to its ticker.
func (s *Simulation) GetSecurityTicker(assetID domain.AssetID) (string, error) {
	rec, ok := s.assetByID(assetID)
	if !ok {
		return "", domain.ErrUnknownID
	}
	return rec.ticker, nil
}

// GetSecurityID resolves a ticker to its asset id.
func (s *Simulation) GetSecurityID(ticker string) (domain.AssetID, error) {
	s.assetsMu.RLock()
	defer s.assetsMu.RUnlock()
	id, ok := s.tickerToID[ticker]
	if !ok {
		return 0, domain.ErrUnknownID
	}
	return id, nil
}
