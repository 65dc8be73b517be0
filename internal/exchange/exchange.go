// Package exchange wires the Order Book, Portfolio Ledger, and Market
// Data Engine into a single running simulation, and drives synthetic
// trading participants (bots.Strategy) off their callbacks. Grounded on
// original_source/src/python/simulator/engine.py's SimulationEngine: one
// order book per symbol sharing a single ledger, a market-data callback
// that both updates each book's reference price and fans out to
// strategies, and trade/rejection callbacks that do the same.
package exchange

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"marketsim/internal/bots"
	"marketsim/internal/domain"
	"marketsim/internal/marketdata"
	"marketsim/internal/orderbook"
	"marketsim/internal/portfolio"
)

// TradeObserver is an external callback for every trade across every
// symbol in the exchange.
type TradeObserver func(domain.Trade)

// RejectionObserver is an external callback for every rejected admission
// across every symbol.
type RejectionObserver func(domain.Order, string)

// MarketDataObserver is an external callback for every published tick
// across every symbol.
type MarketDataObserver func(domain.MarketData)

// Exchange is the top-level simulation: a named set of symbols, each with
// its own OrderBook, sharing one Ledger and one MarketData Engine.
type Exchange struct {
	log *slog.Logger

	ledger *portfolio.Ledger
	mde    *marketdata.Engine

	mu         sync.RWMutex
	symbols    []domain.Symbol
	books      map[domain.Symbol]*orderbook.OrderBook
	strategies []bots.Strategy

	tradeLogMu sync.Mutex
	tradeLog   []domain.Trade

	observerMu   sync.Mutex
	onTrade      []TradeObserver
	onRejection  []RejectionObserver
	onMarketData []MarketDataObserver

	marketMakerSeq int
}

// New creates an exchange with its own ledger and market-data engine. A
// seed of 0 lets the market-data engine time-seed itself.
func New(log *slog.Logger, seed int64) *Exchange {
	if log == nil {
		log = slog.Default()
	}

	var mde *marketdata.Engine
	if seed == 0 {
		mde = marketdata.New(log)
	} else {
		mde = marketdata.NewSeeded(seed, log)
	}

	ex := &Exchange{
		log:    log,
		ledger: portfolio.NewLedger(),
		mde:    mde,
		books:  make(map[domain.Symbol]*orderbook.OrderBook),
	}
	ex.mde.SetCallback(ex.dispatchMarketData)
	return ex
}

// AddSymbol registers symbol with an initial price and creates its order
// book. There is no check against calls made after Start; a symbol added
// then is registered and ticked like any other.
func (ex *Exchange) AddSymbol(symbol domain.Symbol, initialPrice decimal.Decimal) {
	ex.mde.AddSymbol(symbol, initialPrice)

	book := orderbook.New(symbol, ex.ledger, ex.log.With("symbol", symbol))
	book.SetTradeCallback(func(tr domain.Trade) { ex.dispatchTrade(tr) })
	book.SetRejectionCallback(func(o domain.Order, reason string) { ex.dispatchRejection(o, reason) })
	book.UpdateMarketPrice(initialPrice)

	ex.mu.Lock()
	ex.symbols = append(ex.symbols, symbol)
	ex.books[symbol] = book
	ex.mu.Unlock()
}

// AddSymbolWithVolatility is AddSymbol with an explicit annualized
// volatility for the symbol's GBM process, overriding the market-data
// engine's default.
func (ex *Exchange) AddSymbolWithVolatility(symbol domain.Symbol, initialPrice decimal.Decimal, volatility float64) {
	ex.mde.AddSymbolWithVolatility(symbol, initialPrice, volatility)

	book := orderbook.New(symbol, ex.ledger, ex.log.With("symbol", symbol))
	book.SetTradeCallback(func(tr domain.Trade) { ex.dispatchTrade(tr) })
	book.SetRejectionCallback(func(o domain.Order, reason string) { ex.dispatchRejection(o, reason) })
	book.UpdateMarketPrice(initialPrice)

	ex.mu.Lock()
	ex.symbols = append(ex.symbols, symbol)
	ex.books[symbol] = book
	ex.mu.Unlock()
}

// AddParticipant registers a trading participant with starting cash.
func (ex *Exchange) AddParticipant(id domain.ParticipantId, initialCash decimal.Decimal) {
	ex.ledger.AddParticipant(id, initialCash)
}

// SetInitialPosition seeds a participant's starting position, costed at
// the symbol's current market-data price.
func (ex *Exchange) SetInitialPosition(id domain.ParticipantId, symbol domain.Symbol, qty domain.Quantity) {
	price := ex.mde.GetCurrentPrice(symbol)
	ex.ledger.SetInitialPosition(id, symbol, qty, price)
}

// AddStrategy registers a synthetic participant and wires it as a
// Submitter-bound observer of this exchange's events.
func (ex *Exchange) AddStrategy(s bots.Strategy) {
	s.Init(ex)

	ex.mu.Lock()
	ex.strategies = append(ex.strategies, s)
	ex.mu.Unlock()
}

// AddMomentumTrader creates, registers, and funds a momentum bot in one
// call.
func (ex *Exchange) AddMomentumTrader(id domain.ParticipantId, initialCash decimal.Decimal, symbols []domain.Symbol, lookback int, threshold decimal.Decimal, positionSize domain.Quantity) *bots.MomentumStrategy {
	ex.AddParticipant(id, initialCash)
	strategy := bots.NewMomentumStrategy(id, symbols, lookback, threshold, positionSize, ex.log.With("bot", id))
	ex.AddStrategy(strategy)
	return strategy
}

// AddMarketMaker creates, registers, and funds a market-making bot,
// assigning it an auto-generated id, mirroring original_source/
// engine.py's add_market_maker.
func (ex *Exchange) AddMarketMaker(initialCash decimal.Decimal, symbols []domain.Symbol, spreadBps int, quoteSize, maxPosition domain.Quantity, inventorySkew decimal.Decimal) *bots.MarketMakerStrategy {
	ex.mu.Lock()
	ex.marketMakerSeq++
	id := domain.ParticipantId(fmt.Sprintf("__market_maker_%d", ex.marketMakerSeq))
	ex.mu.Unlock()

	ex.AddParticipant(id, initialCash)
	strategy := bots.NewMarketMakerStrategy(id, symbols, spreadBps, quoteSize, maxPosition, inventorySkew, ex.log.With("bot", id))
	ex.AddStrategy(strategy)
	return strategy
}

// OnTrade registers an external observer notified of every trade.
func (ex *Exchange) OnTrade(fn TradeObserver) {
	ex.observerMu.Lock()
	defer ex.observerMu.Unlock()
	ex.onTrade = append(ex.onTrade, fn)
}

// OnRejection registers an external observer notified of every rejected
// admission.
func (ex *Exchange) OnRejection(fn RejectionObserver) {
	ex.observerMu.Lock()
	defer ex.observerMu.Unlock()
	ex.onRejection = append(ex.onRejection, fn)
}

// OnMarketData registers an external observer notified of every tick.
func (ex *Exchange) OnMarketData(fn MarketDataObserver) {
	ex.observerMu.Lock()
	defer ex.observerMu.Unlock()
	ex.onMarketData = append(ex.onMarketData, fn)
}

// Start begins the market-data producer, which in turn drives order-book
// reference prices and strategy callbacks.
func (ex *Exchange) Start() {
	ex.mde.Start()
}

// Stop halts the market-data producer. Resting orders and portfolio state
// are left as-is; this is an in-memory simulator with no durability
// concern.
func (ex *Exchange) Stop() {
	ex.mde.Stop()
}

// SubmitOrder implements bots.Submitter: it routes to the book for
// order.Symbol, assigning a fresh id if the caller left it zero.
func (ex *Exchange) SubmitOrder(order domain.Order) bool {
	if order.ID == 0 {
		order.ID = domain.NewOrderID()
	}

	book := ex.bookFor(order.Symbol)
	if book == nil {
		ex.log.Warn("order submitted for unknown symbol", "symbol", order.Symbol)
		return false
	}
	return book.AddOrder(order)
}

// CancelOrder implements bots.Submitter.
func (ex *Exchange) CancelOrder(symbol domain.Symbol, id domain.OrderId) bool {
	book := ex.bookFor(symbol)
	if book == nil {
		return false
	}
	return book.CancelOrder(id)
}

// Position implements bots.Submitter.
func (ex *Exchange) Position(participantId domain.ParticipantId, symbol domain.Symbol) domain.Quantity {
	qty, err := ex.ledger.GetPosition(participantId, symbol)
	if err != nil {
		return 0
	}
	return qty
}

// CurrentPrice implements bots.Submitter.
func (ex *Exchange) CurrentPrice(symbol domain.Symbol) decimal.Decimal {
	return ex.mde.GetCurrentPrice(symbol)
}

func (ex *Exchange) bookFor(symbol domain.Symbol) *orderbook.OrderBook {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.books[symbol]
}

// dispatchMarketData is the MDE callback: it updates the relevant book's
// reference price, then fans out to strategies and external observers,
// mirroring original_source/engine.py's _on_market_data.
func (ex *Exchange) dispatchMarketData(md domain.MarketData) {
	if book := ex.bookFor(md.Symbol); book != nil {
		book.UpdateMarketPrice(md.Price)
	}

	ex.mu.RLock()
	strategies := append([]bots.Strategy(nil), ex.strategies...)
	ex.mu.RUnlock()
	for _, s := range strategies {
		s.OnMarketData(md)
	}

	ex.observerMu.Lock()
	observers := append([]MarketDataObserver(nil), ex.onMarketData...)
	ex.observerMu.Unlock()
	for _, fn := range observers {
		fn(md)
	}
}

// dispatchTrade is the per-book trade callback: it appends to the trade
// log, fans out to strategies, then to external observers, mirroring
// original_source/engine.py's _on_trade.
func (ex *Exchange) dispatchTrade(trade domain.Trade) {
	ex.tradeLogMu.Lock()
	ex.tradeLog = append(ex.tradeLog, trade)
	ex.tradeLogMu.Unlock()

	ex.mu.RLock()
	strategies := append([]bots.Strategy(nil), ex.strategies...)
	ex.mu.RUnlock()
	for _, s := range strategies {
		s.OnTrade(trade)
	}

	ex.observerMu.Lock()
	observers := append([]TradeObserver(nil), ex.onTrade...)
	ex.observerMu.Unlock()
	for _, fn := range observers {
		fn(trade)
	}
}

// dispatchRejection is the per-book rejection callback: only the strategy
// that owns the rejected order is notified, then external observers,
// mirroring original_source/engine.py's _on_order_rejection.
func (ex *Exchange) dispatchRejection(order domain.Order, reason string) {
	ex.mu.RLock()
	strategies := append([]bots.Strategy(nil), ex.strategies...)
	ex.mu.RUnlock()
	for _, s := range strategies {
		if s.ParticipantId() == order.ParticipantId {
			s.OnOrderRejection(order, reason)
		}
	}

	ex.observerMu.Lock()
	observers := append([]RejectionObserver(nil), ex.onRejection...)
	ex.observerMu.Unlock()
	for _, fn := range observers {
		fn(order, reason)
	}
}

// PortfolioSummary reports cash, value, PnL, and per-symbol positions for
// one participant, mirroring original_source/engine.py's
// get_portfolio_summary.
type PortfolioSummary struct {
	Cash           decimal.Decimal
	PortfolioValue decimal.Decimal
	PnL            decimal.Decimal
	Positions      map[domain.Symbol]domain.Quantity
}

func (ex *Exchange) PortfolioSummary(id domain.ParticipantId) (PortfolioSummary, error) {
	prices := ex.mde.GetAllPrices()

	cash, err := ex.ledger.GetCash(id)
	if err != nil {
		return PortfolioSummary{}, err
	}
	value, err := ex.ledger.GetPortfolioValue(id, prices)
	if err != nil {
		return PortfolioSummary{}, err
	}
	pnl, err := ex.ledger.GetPnL(id, prices)
	if err != nil {
		return PortfolioSummary{}, err
	}

	ex.mu.RLock()
	symbols := append([]domain.Symbol(nil), ex.symbols...)
	ex.mu.RUnlock()

	positions := make(map[domain.Symbol]domain.Quantity, len(symbols))
	for _, sym := range symbols {
		positions[sym], _ = ex.ledger.GetPosition(id, sym)
	}

	return PortfolioSummary{Cash: cash, PortfolioValue: value, PnL: pnl, Positions: positions}, nil
}

// MarketSummary reports the current price, top-of-book, spread, and depth
// for one symbol, mirroring original_source/engine.py's
// get_market_summary.
type MarketSummary struct {
	CurrentPrice decimal.Decimal
	Bid          decimal.Decimal
	Ask          decimal.Decimal
	Mid          decimal.Decimal
	Spread       decimal.Decimal
	Bids         []domain.PriceLevel
	Asks         []domain.PriceLevel
}

func (ex *Exchange) MarketSummary(symbol domain.Symbol) (MarketSummary, bool) {
	book := ex.bookFor(symbol)
	if book == nil {
		return MarketSummary{}, false
	}

	bid := book.GetBidPrice()
	ask := book.GetAskPrice()
	bids, asks := book.GetBookDepth(5)

	return MarketSummary{
		CurrentPrice: ex.mde.GetCurrentPrice(symbol),
		Bid:          bid,
		Ask:          ask,
		Mid:          book.GetMidPrice(),
		Spread:       ask.Sub(bid),
		Bids:         bids,
		Asks:         asks,
	}, true
}

// TradeHistory returns a copy of every trade executed so far, across all
// symbols.
func (ex *Exchange) TradeHistory() []domain.Trade {
	ex.tradeLogMu.Lock()
	defer ex.tradeLogMu.Unlock()
	return append([]domain.Trade(nil), ex.tradeLog...)
}
