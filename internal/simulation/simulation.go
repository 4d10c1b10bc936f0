// Package simulation owns every asset, order book, and the portfolio
// table, and drives the discrete step pipeline that resolves crossings
// and emits a StepResult.
package simulation

import (
	"sync"
	"sync/atomic"

	"github.com/efreitasn/marketsim/internal/asset"
	"github.com/efreitasn/marketsim/internal/book"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/portfolio"
	"github.com/google/uuid"
)

// assetRecord is the simulation's private bookkeeping for one registered
// asset; the Asset behavior itself is immutable once created here.
type assetRecord struct {
	id            domain.AssetID
	ticker        string
	denominatedIn string
	denominatedID domain.AssetID
	tradeable     bool
	behavior      asset.Asset
}

// pendingQueue holds orders submitted for one asset since the last drain.
type pendingQueue struct {
	mu     sync.Mutex
	orders []any // *domain.LimitOrder | *domain.CancelOrder | *domain.MarketOrder
}

// Simulation owns all assets, order books, the portfolio table, counters,
// and the per-asset pending queues. A single instance drives one run;
// there is no process-wide singleton.
type Simulation struct {
	dt    float32
	bigT  float32
	n     domain.Step
	runID uuid.UUID

	stepMu sync.Mutex // serializes process_step calls
	state  State
	step   domain.Step
	halted bool // set on ErrInvariantViolation; the engine stops accepting further steps

	userCounter        atomic.Uint32
	assetCounter       atomic.Uint32
	orderCounter       atomic.Uint32
	transactionCounter atomic.Uint32

	usersMu sync.RWMutex
	users   map[domain.UserID]*domain.User

	assetsMu   sync.RWMutex
	assets     []*assetRecord // registration order
	tickerToID map[string]domain.AssetID

	books   map[domain.AssetID]*book.OrderBook
	pending map[domain.AssetID]*pendingQueue

	portfolio *portfolio.Manager

	lastTradeMu sync.RWMutex
	lastTrade   map[domain.AssetID]float32
}

// New creates a simulation with the given step size dt, horizon T, and
// step count N. Assets and users are registered afterward, before the
// first ProcessStep call.
func New(dt, bigT float32, n domain.Step) *Simulation {
	return &Simulation{
		dt:         dt,
		bigT:       bigT,
		n:          n,
		runID:      uuid.New(),
		state:      Created,
		users:      make(map[domain.UserID]*domain.User),
		tickerToID: make(map[string]domain.AssetID),
		books:      make(map[domain.AssetID]*book.OrderBook),
		pending:    make(map[domain.AssetID]*pendingQueue),
		portfolio:  portfolio.New(),
		lastTrade:  make(map[domain.AssetID]float32),
	}
}

// RunID is a UUID identifying this simulation, for correlating log lines
// across a process that may run more than one simulation. The simulation
// itself does not log; callers attach the id to their own log lines.
func (s *Simulation) RunID() uuid.UUID { return s.runID }

// RegisterAsset creates a new asset. If tradeable, denominatedIn must
// already be a registered ticker distinct from ticker itself — an asset
// cannot be denominated in itself.
func (s *Simulation) RegisterAsset(tradeable bool, denominatedIn string, behavior asset.Asset) (domain.AssetID, error) {
	ticker := behavior.Ticker()
	if ticker == "" {
		return 0, domain.NewValidationError("asset ticker must be non-empty")
	}

	s.assetsMu.Lock()
	defer s.assetsMu.Unlock()

	if _, exists := s.tickerToID[ticker]; exists {
		return 0, domain.NewValidationError("ticker already registered: " + ticker)
	}

	var denominatedID domain.AssetID
	if tradeable {
		if denominatedIn == "" || denominatedIn == ticker {
			return 0, domain.NewValidationError("tradeable asset must be denominated in a distinct, already-registered asset")
		}
		id, ok := s.tickerToID[denominatedIn]
		if !ok {
			return 0, domain.NewValidationError("denominated asset not registered: " + denominatedIn)
		}
		denominatedID = id
	}

	id := domain.AssetID(s.assetCounter.Add(1) - 1)
	rec := &assetRecord{
		id:            id,
		ticker:        ticker,
		denominatedIn: denominatedIn,
		denominatedID: denominatedID,
		tradeable:     tradeable,
		behavior:      behavior,
	}
	s.assets = append(s.assets, rec)
	s.tickerToID[ticker] = id
	if tradeable {
		s.books[id] = book.New()
	}
	s.pending[id] = &pendingQueue{}
	return id, nil
}

// AddUser registers a new user with a zeroed portfolio row. Users are
// never destroyed during a run.
func (s *Simulation) AddUser(username string) domain.UserID {
	id := domain.UserID(s.userCounter.Add(1) - 1)

	s.usersMu.Lock()
	s.users[id] = &domain.User{ID: id, Username: username}
	s.usersMu.Unlock()

	s.portfolio.RegisterUser(id)
	return id
}

func (s *Simulation) assetByID(id domain.AssetID) (*assetRecord, bool) {
	s.assetsMu.RLock()
	defer s.assetsMu.RUnlock()
	for _, rec := range s.assets {
		if rec.id == id {
			return rec, true
		}
	}
	return nil, false
}

func (s *Simulation) userExists(id domain.UserID) bool {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	_, ok := s.users[id]
	return ok
}

// HasNextStep reports whether the step counter is still below N. It does
// not reflect a halt after ErrInvariantViolation.
func (s *Simulation) HasNextStep() bool {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.step < s.n
}

// UserCount returns the number of registered users.
func (s *Simulation) UserCount() int {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	return len(s.users)
}

// AssetCount returns the number of registered assets.
func (s *Simulation) AssetCount() int {
	s.assetsMu.RLock()
	defer s.assetsMu.RUnlock()
	return len(s.assets)
}

// CurrentStep returns the current step counter.
func (s *Simulation) CurrentStep() domain.Step {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.step
}

// Dt, T, and N expose the simulation's timing parameters.
func (s *Simulation) Dt() float32    { return s.dt }
func (s *Simulation) T() float32     { return s.bigT }
func (s *Simulation) N() domain.Step { return s.n }

// CurrentTime returns dt * current_step.
func (s *Simulation) CurrentTime() float32 {
	return s.dt * float32(s.CurrentStep())
}

// State returns the simulation-level state machine value.
func (s *Simulation) State() State {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.state
}
