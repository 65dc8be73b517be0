// Package marketdata implements the Market Data Engine: a background
// producer that advances a geometric-Brownian-motion price for each
// registered symbol on a fixed cadence and publishes MarketData snapshots.
// Grounded line-for-line on original_source/src/cpp/core/
// market_data_engine.cpp's generate_data loop (read snapshot and compute
// under the reader lock, outside the writer lock, apply under the writer lock,
// dispatch callbacks with all locks released), translated to Go's
// sync.RWMutex idiom the way chycee-cryptoGo/internal/service/
// price_service.go guards its own price map.
package marketdata

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

// Callback is invoked once per symbol per tick, outside any engine lock.
type Callback func(domain.MarketData)

// floorPrice is the minimum price the GBM process will ever emit; prices
// never go to zero or negative.
const floorPrice = 0.01

// defaultVolatility is used by AddSymbol unless the caller overrides it.
const defaultVolatility = 0.20

// tickPeriod is the producer's wall-clock cadence (10 Hz).
const tickPeriod = 100 * time.Millisecond

// tradingYearDt is the Δt, in trading-year units, that one 100ms tick
// advances the process by. The simulator uses the intraday convention (a
// trading year is 252 days of 6.5 hours), matching the original engine;
// see DESIGN.md for the Open Question this resolves.
const tradingYearDt = 1.0 / (252 * 6.5 * 60 * 60)

type symbolState struct {
	price      float64
	volatility float64
}

// Engine drives synthetic reference prices for a set of symbols.
type Engine struct {
	log *slog.Logger

	mu      sync.RWMutex
	symbols map[domain.Symbol]*symbolState

	rngMu sync.Mutex
	rng   *rand.Rand

	callbackMu sync.Mutex
	callback   Callback

	running atomic.Bool // idempotent-start/stop guard
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an engine with the default (time-seeded) RNG source. Use
// NewSeeded for reproducible runs.
func New(log *slog.Logger) *Engine {
	return NewSeeded(time.Now().UnixNano(), log)
}

// NewSeeded creates an engine whose GBM shocks are drawn from a
// deterministically seeded generator, so two engines constructed with the
// same seed and driven with the same symbol registrations produce
// identical price paths.
func NewSeeded(seed int64, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		log:     log,
		symbols: make(map[domain.Symbol]*symbolState),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// AddSymbol registers symbol with an initial price and the default
// volatility (0.20), overwriting any existing state (idempotent
// overwrite).
func (e *Engine) AddSymbol(symbol domain.Symbol, initialPrice decimal.Decimal) {
	e.AddSymbolWithVolatility(symbol, initialPrice, defaultVolatility)
}

// AddSymbolWithVolatility registers symbol with an explicit volatility.
func (e *Engine) AddSymbolWithVolatility(symbol domain.Symbol, initialPrice decimal.Decimal, volatility float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, _ := initialPrice.Float64()
	e.symbols[symbol] = &symbolState{price: price, volatility: volatility}
}

// SetCallback installs the tick consumer (single callback; replacing it
// while running is allowed).
func (e *Engine) SetCallback(cb Callback) {
	e.callbackMu.Lock()
	defer e.callbackMu.Unlock()
	e.callback = cb
}

// Start begins the background producer. Calling Start on an already
// running engine is a no-op.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(ctx)
}

// Stop flips the running flag and blocks until the producer has observed
// it and exited. Calling Stop on an already stopped engine is a no-op.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}

	e.cancel()
	<-e.done
}

// GetCurrentPrice returns a snapshot of symbol's price, or zero if
// unknown.
func (e *Engine) GetCurrentPrice(symbol domain.Symbol) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.symbols[symbol]
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(st.price)
}

// GetAllPrices returns an atomic snapshot of the whole price table.
func (e *Engine) GetAllPrices() map[domain.Symbol]decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[domain.Symbol]decimal.Decimal, len(e.symbols))
	for sym, st := range e.symbols {
		out[sym] = decimal.NewFromFloat(st.price)
	}
	return out
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

type priceUpdate struct {
	symbol domain.Symbol
	price  float64
}

// tick runs one GBM step over every registered symbol: compute under the
// reader lock plus the RNG's own lock, apply under the writer lock, then
// dispatch outside all locks.
func (e *Engine) tick() {
	updates := e.computeUpdates()
	e.applyUpdates(updates)
	e.dispatch(updates)
}

func (e *Engine) computeUpdates() []priceUpdate {
	e.mu.RLock()
	defer e.mu.RUnlock()

	e.rngMu.Lock()
	defer e.rngMu.Unlock()

	updates := make([]priceUpdate, 0, len(e.symbols))
	for symbol, st := range e.symbols {
		shock := e.rng.NormFloat64()
		drift := 0.0
		change := st.price * (drift*tradingYearDt + st.volatility*math.Sqrt(tradingYearDt)*shock)
		newPrice := math.Max(floorPrice, st.price+change)
		updates = append(updates, priceUpdate{symbol: symbol, price: newPrice})
	}
	return updates
}

func (e *Engine) applyUpdates(updates []priceUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, u := range updates {
		if st, ok := e.symbols[u.symbol]; ok {
			st.price = u.price
		}
	}
}

func (e *Engine) dispatch(updates []priceUpdate) {
	e.callbackMu.Lock()
	cb := e.callback
	e.callbackMu.Unlock()

	if cb == nil {
		return
	}

	now := domain.Timestamp(time.Now().UnixMilli())
	for _, u := range updates {
		price := decimal.NewFromFloat(u.price)
		cb(domain.MarketData{
			Symbol:    u.symbol,
			Price:     price,
			Bid:       price.Mul(decimal.NewFromFloat(0.999)),
			Ask:       price.Mul(decimal.NewFromFloat(1.001)),
			Timestamp: now,
		})
	}
}
