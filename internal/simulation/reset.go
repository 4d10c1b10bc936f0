package simulation

import (
	"github.com/efreitasn/marketsim/internal/book"
	"github.com/efreitasn/marketsim/internal/domain"
)

// ResetSimulation zeroes portfolios and resets the step counter to 0 but
// keeps user and asset registrations.
//
// Order books are cleared too: replaying the same submission sequence
// after a reset should produce the same StepResult sequence, which only
// holds if resting orders from the previous run don't leak into the
// replay. The order and transaction id counters are reset for the same
// reason — otherwise the replayed submissions would be assigned strictly
// higher ids than the original run produced, and every id-keyed field of
// StepResult would diverge from it. See DESIGN.md for the full
// justification.
func (s *Simulation) ResetSimulation() {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	s.step = 0
	s.state = Created
	s.halted = false
	s.orderCounter.Store(0)
	s.transactionCounter.Store(0)

	s.assetsMu.RLock()
	for _, rec := range s.assets {
		if rec.tradeable {
			s.books[rec.id] = book.New()
		}
		pq := s.pending[rec.id]
		pq.mu.Lock()
		pq.orders = nil
		pq.mu.Unlock()
	}
	s.assetsMu.RUnlock()

	s.portfolio.ResetAll()

	s.lastTradeMu.Lock()
	s.lastTrade = make(map[domain.AssetID]float32)
	s.lastTradeMu.Unlock()
}
