// Package book implements the two-sided order book: ordered bid/ask sides
// with O(log n) insert, cancel, and peek by id.
package book

import (
	"sync"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/google/btree"
)

// RestingOrder is a single order resting on a book. Price is immutable
// once inserted; Volume is decremented in place as matches consume it.
type RestingOrder struct {
	UserID  domain.UserID
	OrderID domain.OrderID
	Side    domain.OrderSide
	Price   float32
	Volume  float32
}

// bidLess orders the bid side by descending price, then ascending
// order_id, so Min() returns the highest-priority bid.
func bidLess(a, b *RestingOrder) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.OrderID < b.OrderID
}

// askLess orders the ask side by ascending price, then ascending
// order_id, so Min() returns the highest-priority ask.
func askLess(a, b *RestingOrder) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.OrderID < b.OrderID
}

// PriceLevel is one entry of a cumulative depth snapshot.
type PriceLevel struct {
	Price            float32
	CumulativeVolume float32
}

// Depth is the two-sided cumulative book_depth snapshot: bids in
// descending price order, asks in ascending, each level's volume being
// the sum of every order with priority at least as good as that price.
type Depth struct {
	Bid []PriceLevel
	Ask []PriceLevel
}

// Flat is the two-sided flatten snapshot: both sequences in priority
// order.
type Flat struct {
	Bid []RestingOrder
	Ask []RestingOrder
}

// OrderBook maintains the bid and ask sides for a single asset using
// B-trees with a secondary index for O(log n) removal by order id.
//
// The embedded RWMutex is not acquired by any method of OrderBook: the
// stepping thread holds the exclusive lock (Lock) for the whole duration
// of a step, and observer callers take the shared lock (RLock) before
// calling TopBid, TopAsk, Depth, Flatten or OrdersOfUser, so they block
// while a step is in flight.
type OrderBook struct {
	mu    sync.RWMutex
	bids  *btree.BTreeG[*RestingOrder]
	asks  *btree.BTreeG[*RestingOrder]
	index map[domain.OrderID]*RestingOrder
}

// New creates an empty order book.
func New() *OrderBook {
	const degree = 32
	return &OrderBook{
		bids:  btree.NewG[*RestingOrder](degree, bidLess),
		asks:  btree.NewG[*RestingOrder](degree, askLess),
		index: make(map[domain.OrderID]*RestingOrder),
	}
}

// Lock acquires the exclusive lock held by the stepping thread for the
// duration of a step.
func (ob *OrderBook) Lock() { ob.mu.Lock() }

// Unlock releases the exclusive lock.
func (ob *OrderBook) Unlock() { ob.mu.Unlock() }

// RLock acquires the shared lock used by observer queries outside a step.
func (ob *OrderBook) RLock() { ob.mu.RLock() }

// RUnlock releases the shared lock.
func (ob *OrderBook) RUnlock() { ob.mu.RUnlock() }

// Insert adds order to the side matching its Side. It returns false, and
// does not insert, if order_id is already present on this book — the
// engine assigns ids, so this is an internal invariant, not a caller
// error.
func (ob *OrderBook) Insert(order *RestingOrder) bool {
	if _, exists := ob.index[order.OrderID]; exists {
		return false
	}
	if order.Side == domain.Bid {
		ob.bids.ReplaceOrInsert(order)
	} else {
		ob.asks.ReplaceOrInsert(order)
	}
	ob.index[order.OrderID] = order
	return true
}

// Cancel removes the order with the given id from whichever side it
// resides on. It returns false if the id is unknown on this book.
func (ob *OrderBook) Cancel(orderID domain.OrderID) bool {
	order, ok := ob.index[orderID]
	if !ok {
		return false
	}
	delete(ob.index, orderID)
	if order.Side == domain.Bid {
		ob.bids.Delete(order)
	} else {
		ob.asks.Delete(order)
	}
	return true
}

// TopBid returns the highest-priority bid. ok is false when the bid side
// is empty.
func (ob *OrderBook) TopBid() (*RestingOrder, bool) {
	return ob.bids.Min()
}

// TopAsk returns the highest-priority ask. ok is false when the ask side
// is empty.
func (ob *OrderBook) TopAsk() (*RestingOrder, bool) {
	return ob.asks.Min()
}

// PopTopBid removes and returns the highest-priority bid.
func (ob *OrderBook) PopTopBid() (*RestingOrder, bool) {
	order, ok := ob.bids.DeleteMin()
	if ok {
		delete(ob.index, order.OrderID)
	}
	return order, ok
}

// PopTopAsk removes and returns the highest-priority ask.
func (ob *OrderBook) PopTopAsk() (*RestingOrder, bool) {
	order, ok := ob.asks.DeleteMin()
	if ok {
		delete(ob.index, order.OrderID)
	}
	return order, ok
}

// IsCrossed reports whether the book is crossed: both sides non-empty
// with top_bid.price >= top_ask.price.
func (ob *OrderBook) IsCrossed() bool {
	tb, okB := ob.bids.Min()
	ta, okA := ob.asks.Min()
	return okB && okA && tb.Price >= ta.Price
}

// BidCount returns the number of resting bid orders.
func (ob *OrderBook) BidCount() int { return ob.bids.Len() }

// AskCount returns the number of resting ask orders.
func (ob *OrderBook) AskCount() int { return ob.asks.Len() }

// Depth builds the cumulative book_depth snapshot.
func (ob *OrderBook) Depth() Depth {
	return Depth{
		Bid: cumulativeLevels(ob.bids),
		Ask: cumulativeLevels(ob.asks),
	}
}

func cumulativeLevels(tree *btree.BTreeG[*RestingOrder]) []PriceLevel {
	var levels []PriceLevel
	var running float32
	tree.Ascend(func(order *RestingOrder) bool {
		running += order.Volume
		if len(levels) > 0 && levels[len(levels)-1].Price == order.Price {
			levels[len(levels)-1].CumulativeVolume = running
			return true
		}
		levels = append(levels, PriceLevel{Price: order.Price, CumulativeVolume: running})
		return true
	})
	return levels
}

// Flatten returns both sides' resting orders in priority order.
func (ob *OrderBook) Flatten() Flat {
	var f Flat
	ob.bids.Ascend(func(order *RestingOrder) bool {
		f.Bid = append(f.Bid, *order)
		return true
	})
	ob.asks.Ascend(func(order *RestingOrder) bool {
		f.Ask = append(f.Ask, *order)
		return true
	})
	return f
}

// OrdersOfUser returns the set of order ids belonging to userID across
// both sides.
func (ob *OrderBook) OrdersOfUser(userID domain.UserID) map[domain.OrderID]struct{} {
	ids := make(map[domain.OrderID]struct{})
	for orderID, order := range ob.index {
		if order.UserID == userID {
			ids[orderID] = struct{}{}
		}
	}
	return ids
}
